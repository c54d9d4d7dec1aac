package util

import (
	"math"
	"strconv"
)

const PageSize = 200

// MaxPage is the last page whose offset still fits in an int at PageSize.
const MaxPage = math.MaxInt/PageSize - 1

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// ValidPage reports whether page*size and (page+1)*size fit in an int.
func ValidPage(page, size int) bool {
	if size <= 0 {
		size = PageSize
	}
	return page >= 0 && page <= math.MaxInt/size-1
}

// Calculate maps a zero-based page to an offset/limit window. Pages past the
// int range are clamped to the last representable one.
func Calculate(page, size int) (offset, limit int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = PageSize
	}
	if last := math.MaxInt/size - 1; page > last {
		page = last
	}
	return page * size, size
}

func HasMore(page, size, returned int, total int64) bool {
	if size <= 0 || !ValidPage(page, size) {
		return false
	}
	return returned >= size && int64((page+1)*size) < total
}
