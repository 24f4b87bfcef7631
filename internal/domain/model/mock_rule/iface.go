package model

// RequestInfo 传输层无关的请求抽象，条件判断和响应合成只依赖它
type RequestInfo interface {
	GetMethod() string
	GetPath() string
	GetHeader(key string) (string, bool) // 大小写不敏感
	GetHeaders() map[string]string
	GetQuery(key string) (string, bool)
	GetRawQuery() string
	GetBody() []byte
	GetBodyJSON() (any, error)
	GetPathParam(key string) (string, bool)
	GetClientIP() string
	GetUserAgent() string
}
