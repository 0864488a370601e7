// Package event implements typed, multi-subscriber signals.
//
// A Signal delivers each emitted value to its subscribers either synchronously
// (On, Once) or by scheduling the handler on an execution.Context (OnIn).
// Every subscription returns an Off handle; releasing it is immediate and also
// cancels deliveries that were scheduled but have not run yet.
package event
