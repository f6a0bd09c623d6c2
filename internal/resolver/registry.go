package resolver

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	xerrors "Attest-Resolver/internal/errors"
)

// Entry describes a registered resolver.
type Entry struct {
	Name     string         `json:"name"`
	Address  common.Address `json:"address"`
	Metadata Metadata       `json:"metadata"`
}

// Registry maps configured names to resolver instances.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Resolver
	order  []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Resolver)}
}

// Register adds res under name. Names and addresses must be unique.
func (r *Registry) Register(name string, res Resolver) error {
	if name == "" || res == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "解析器名称和实例不能为空")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; ok {
		return xerrors.New(xerrors.CodeConflict, fmt.Sprintf("解析器 %s 已注册", name))
	}
	for other, existing := range r.byName {
		if existing.Address() == res.Address() {
			return xerrors.New(xerrors.CodeConflict, fmt.Sprintf("地址 %s 已被解析器 %s 使用", res.Address().Hex(), other))
		}
	}
	r.byName[name] = res
	r.order = append(r.order, name)
	return nil
}

// Get returns the resolver registered under name.
func (r *Registry) Get(name string) (Resolver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byName[name]
	if !ok {
		return nil, xerrors.New(xerrors.CodeNotFound, fmt.Sprintf("解析器 %s 不存在", name))
	}
	return res, nil
}

// List returns every registered resolver in registration order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		res := r.byName[name]
		out = append(out, Entry{Name: name, Address: res.Address(), Metadata: res.Metadata()})
	}
	return out
}
