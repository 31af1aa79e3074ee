package service

import "github.com/smallbiznis/lexcredit/pkg/db/pagination"

func paginationOf(size int, token string) pagination.Pagination {
	return pagination.Pagination{PageSize: size, PageToken: token}
}
