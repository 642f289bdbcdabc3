package model

// BBox 边界框
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Warning 不中断合成的提示
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SessionInfo 会话状态
type SessionInfo struct {
	ID            string          `json:"id"`
	Fingerprint   string          `json:"fingerprint,omitempty"`
	Format        string          `json:"format,omitempty"`
	Width         int             `json:"width"`
	Height        int             `json:"height"`
	DisplayWidth  int             `json:"display_width"`
	DisplayHeight int             `json:"display_height"`
	ScaleX        float64         `json:"scale_x"`
	ScaleY        float64         `json:"scale_y"`
	Layers        map[string]bool `json:"layers"`
	HasResult     bool            `json:"has_result"`
}

// CompositeResult 合成结果
type CompositeResult struct {
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Foreground  BBox      `json:"foreground"`
	Coverage    float64   `json:"coverage"`
	Warnings    []Warning `json:"warnings,omitempty"`
	Cached      bool      `json:"cached"`
	Digest      string    `json:"digest"`
	Timestamp   int64     `json:"timestamp"`
	DownloadURL string    `json:"download_url,omitempty"`
}

// UploadResponse 通用成功响应
type UploadResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
