package onnx

import "context"

// EngineFunc adapts a plain function to the Engine interface. Close is a no-op.
type EngineFunc func(ctx context.Context, input Tensor) (Tensor, error)

// Run calls f.
func (f EngineFunc) Run(ctx context.Context, input Tensor) (Tensor, error) { return f(ctx, input) }

// Close does nothing.
func (EngineFunc) Close() error { return nil }
