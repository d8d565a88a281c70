// Package events is an in-process publish/subscribe bus for entity changes.
// Services publish after a successful write; subscribers such as the cache
// invalidator react synchronously so the next read observes the change.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type Kind string

const (
	KindProduct  Kind = "product"
	KindCustomer Kind = "customer"
	KindOrder    Kind = "order"
	KindEmployee Kind = "employee"
	KindCategory Kind = "category"
)

// ProductRef identifies a product by both of its lookup keys.
type ProductRef struct {
	ID      string
	Barcode string
}

type Change struct {
	Kind Kind
	ID   string

	Barcode       string
	Phone         string
	PreviousPhone string
	EmployeeID    string
	Products      []ProductRef

	// ActorID is the user whose request caused the change.
	ActorID string
}

type Handler func(ctx context.Context, change Change) error

type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish runs every handler in subscription order and joins their errors.
// A panicking handler is reported as an error.
func (b *Bus) Publish(ctx context.Context, change Change) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := safeCall(ctx, handler, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) HandlerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

func safeCall(ctx context.Context, handler Handler, change Change) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s change handler panic: %v", change.Kind, r)
		}
	}()
	return handler(ctx, change)
}
