package future

// Promise is the write side of a Future.
type Promise[T any] struct {
	future *Future[T]
}

// NewPromise creates a promise with an unsettled future.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{future: newFuture[T]()}
}

// Future returns the read side.
func (p *Promise[T]) Future() *Future[T] {
	return p.future
}

// Success completes the future with v. It returns false if the future had already settled.
func (p *Promise[T]) Success(v T) bool {
	return p.future.complete(v, nil)
}

// Fail completes the future with err. It returns false if the future had already settled.
func (p *Promise[T]) Fail(err error) bool {
	var zero T
	return p.future.complete(zero, err)
}

// Complete settles the future with a value or, when err is non-nil, an error.
func (p *Promise[T]) Complete(v T, err error) bool {
	if err != nil {
		return p.Fail(err)
	}
	return p.Success(v)
}

// CompleteWith settles the future with other's outcome once other settles.
func (p *Promise[T]) CompleteWith(other *Future[T]) {
	other.OnComplete(func(v T, err error) {
		p.Complete(v, err)
	})
}
