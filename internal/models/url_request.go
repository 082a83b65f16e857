package models

// CreateURLRequest represents the request body for creating a short URL.
// The URL may omit its scheme; it is normalized before classification.
type CreateURLRequest struct {
	URL       string  `json:"url" binding:"required,max=2048"`
	Name      *string `json:"name,omitempty" binding:"omitempty,max=100"`
	ShortCode *string `json:"short_code,omitempty" binding:"omitempty,shortcode"` // Optional custom short code
}

// UpdateURLRequest is a partial update; omitted fields are left alone
type UpdateURLRequest struct {
	URL       *string `json:"url,omitempty" binding:"omitempty,max=2048"`
	Name      *string `json:"name,omitempty" binding:"omitempty,max=100"`
	ShortCode *string `json:"short_code,omitempty" binding:"omitempty,shortcode"`
}

// UpdateStatusRequest sets the status of a URL or a user
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active suspended inactive"`
}

// UpdateRoleRequest sets a user's role
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=user admin"`
}

// PageQuery is the pagination of list endpoints
type PageQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}
