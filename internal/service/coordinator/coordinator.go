package coordinator

import (
	"context"
	"fmt"
)

// Coordinator сериализует все записи: резервирование, создание заказов,
// списания. Проверки идут без блокировки по снимку, а перед фиксацией
// повторяются внутри Do.
type Coordinator struct {
	slot chan struct{}
}

func New() *Coordinator {
	return &Coordinator{slot: make(chan struct{}, 1)}
}

// Do выполняет fn монопольно. Ожидание прерывается отменой ctx.
func (c *Coordinator) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	const op = "coordinator.Do"

	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	defer func() { <-c.slot }()

	return fn(ctx)
}
