package handlers

import (
	"strconv"

	"gamyacollections/internal/apperr"
)

const maxPageLimit = 100

func parsePaginationParams(pageStr, limitStr string) (int64, int64, error) {
	page := int64(1)
	limit := int64(20)

	if pageStr != "" {
		p, err := strconv.ParseInt(pageStr, 10, 64)
		if err != nil || p < 1 {
			return 0, 0, apperr.Validation("page must be a positive integer")
		}
		page = p
	}

	if limitStr != "" {
		l, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || l < 1 {
			return 0, 0, apperr.Validation("limit must be a positive integer")
		}
		limit = l
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	return page, limit, nil
}

func paginationMeta(page, limit, total int64) map[string]int64 {
	pages := int64(0)
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return map[string]int64{"page": page, "limit": limit, "total": total, "pages": pages}
}
