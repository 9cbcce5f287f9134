package schema

import (
	"github.com/pkg/errors"

	"github.com/hatlonely/ignorable/ref"
)

// NewFetcherWithOptions 通过 ref 构造 Fetcher，namespace 为空时使用本包
func NewFetcherWithOptions(options *ref.TypeOptions) (Fetcher, error) {
	if options == nil {
		return nil, errors.New("fetcher options is nil")
	}

	namespace := options.Namespace
	if namespace == "" {
		namespace = "github.com/hatlonely/ignorable/schema"
	}

	obj, err := ref.New(namespace, options.Type, options.Options)
	if err != nil {
		return nil, errors.WithMessagef(err, "create fetcher failed, registered: %v", ref.Registered(namespace))
	}
	fetcher, ok := obj.(Fetcher)
	if !ok {
		return nil, errors.Errorf("%T is not a schema.Fetcher", obj)
	}
	return fetcher, nil
}
