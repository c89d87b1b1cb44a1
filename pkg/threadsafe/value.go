package threadsafe

import "sync"

type Value[T any] struct {
	value T
	mux   *sync.RWMutex
}

func NewValue[T any](v T) *Value[T] {
	return &Value[T]{
		value: v,
		mux:   &sync.RWMutex{},
	}
}

func (v *Value[T]) Get() T {
	v.mux.RLock()
	defer v.mux.RUnlock()
	return v.value
}

func (v *Value[T]) Set(value T) {
	v.mux.Lock()
	defer v.mux.Unlock()
	v.value = value
}
