package model

import "context"

type pathParamsKey struct{}

// WithPathParams 挂载路由表解析出的路径参数
func WithPathParams(ctx context.Context, params map[string]string) context.Context {
	if len(params) == 0 {
		return ctx
	}
	return context.WithValue(ctx, pathParamsKey{}, params)
}

// PathParamsFromContext 未挂载时返回 nil
func PathParamsFromContext(ctx context.Context) map[string]string {
	params, _ := ctx.Value(pathParamsKey{}).(map[string]string)
	return params
}
