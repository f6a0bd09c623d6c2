package auth

import "context"

// proofsKey 是上下文中存储调用凭证的键类型。
type proofsKey struct{}

// WithProofs 将请求携带的凭证存入上下文。
func WithProofs(ctx context.Context, proofs Proofs) context.Context {
	if len(proofs) == 0 {
		return ctx
	}
	return context.WithValue(ctx, proofsKey{}, proofs)
}

// ProofsFromContext 从上下文中取出凭证，不存在时返回 nil。
func ProofsFromContext(ctx context.Context) Proofs {
	if ctx == nil {
		return nil
	}
	if proofs, ok := ctx.Value(proofsKey{}).(Proofs); ok {
		return proofs
	}
	return nil
}
