package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
)

// ParallelConfig holds configuration for parallel processing.
type ParallelConfig struct {
	MaxWorkers       int                           // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback              // Optional progress reporting
	ErrorHandler     func(int, image.Image, error) // Optional per-image error handler
}

// DefaultParallelConfig returns sensible defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type imageJob struct {
	index int
	image image.Image
}

type imageResult struct {
	index  int
	result *ImageResult
	err    error
}

// ProcessImages runs ProcessImage over images with a worker pool and returns
// the results in input order. A failed image leaves a nil entry; the first
// failure (by index) is returned alongside the partial results. Cancelling
// ctx abandons the images not yet started and returns ctx.Err().
func (p *Pipeline) ProcessImages(ctx context.Context, images []image.Image, config ParallelConfig) ([]*ImageResult, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	workers := min(config.MaxWorkers, len(images))

	if config.ProgressCallback != nil {
		config.ProgressCallback.OnStart(len(images))
		defer config.ProgressCallback.OnComplete()
	}

	jobs := make(chan imageJob)
	results := make(chan imageResult, len(images))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go p.worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, img := range images {
			select {
			case jobs <- imageJob{index: i, image: img}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*ImageResult, len(images))
	errs := make([]error, len(images))
	done := 0
	for r := range results {
		ordered[r.index] = r.result
		errs[r.index] = r.err
		done++
		if config.ProgressCallback != nil {
			if r.err != nil {
				config.ProgressCallback.OnError(r.index, r.err)
			}
			config.ProgressCallback.OnProgress(done, len(images))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstErr error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("image %d: %w", i, err)
		}
		if config.ErrorHandler != nil {
			config.ErrorHandler(i, images[i], err)
		}
	}
	return ordered, firstErr
}

func (p *Pipeline) worker(ctx context.Context, jobs <-chan imageJob, results chan<- imageResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range jobs {
		if ctx.Err() != nil {
			return
		}
		res, err := p.ProcessImage(ctx, job.image)
		results <- imageResult{index: job.index, result: res, err: err}
	}
}
