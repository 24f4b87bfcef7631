package model

import (
	"mime"
	"strings"
)

// NormalizeRoutePath 规范化规则路径
//
//	api/users      => /api/users
//	/api/users/    => /api/users
//	//api//users   => /api/users
//	/              => /
func NormalizeRoutePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	segments := SplitPath(path)
	if len(segments) == 0 {
		return "/"
	}
	return "/" + strings.Join(segments, "/")
}

// SplitPath 按 / 切分，忽略空段
func SplitPath(path string) []string {
	raw := strings.Split(path, "/")
	segments := raw[:0]
	for _, s := range raw {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// ParamName 返回 :id 或 {id} 段的参数名
func ParamName(segment string) (string, bool) {
	if len(segment) > 1 && segment[0] == ':' {
		return segment[1:], true
	}
	if len(segment) > 2 && segment[0] == '{' && segment[len(segment)-1] == '}' {
		return segment[1 : len(segment)-1], true
	}
	return "", false
}

// IsParamPath 路径中至少有一个参数段
func IsParamPath(path string) bool {
	for _, s := range SplitPath(path) {
		if _, ok := ParamName(s); ok {
			return true
		}
	}
	return false
}

// RouteShape 参数段统一替换为 :，参数名不同的路径落在同一个槽位
//
//	/users/:id/orders/{oid} => /users/:/orders/:
func RouteShape(path string) string {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return "/"
	}
	for i, s := range segments {
		if _, ok := ParamName(s); ok {
			segments[i] = ":"
		}
	}
	return "/" + strings.Join(segments, "/")
}

// RouteKey 路由表 key: METHOD:path
func RouteKey(method, path string) string {
	return strings.ToUpper(method) + ":" + path
}

// OwnerRouteKey 存储唯一性 key: owner|path|method
func OwnerRouteKey(owner, path, method string) string {
	return strings.Join([]string{owner, path, strings.ToUpper(method)}, "|")
}

// MediaType 取 Content-Type 中 ; 之前的部分，小写
func MediaType(contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// ProbePath 把参数段替换为占位值，用于探活请求
func ProbePath(path string) string {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return "/"
	}
	for i, s := range segments {
		if _, ok := ParamName(s); ok {
			segments[i] = "probe"
		}
	}
	return "/" + strings.Join(segments, "/")
}
