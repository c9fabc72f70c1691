package dto

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PaginationRequest 列表接口通用的 page / page_size 查询参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func (p *PaginationRequest) GetPage() int {
	return max(p.Page, 1)
}

func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return defaultPageSize
	}
	return min(p.PageSize, maxPageSize)
}

// Window 换算为仓储层的 offset / limit
func (p *PaginationRequest) Window() (offset, limit int) {
	limit = p.GetPageSize()
	return (p.GetPage() - 1) * limit, limit
}
