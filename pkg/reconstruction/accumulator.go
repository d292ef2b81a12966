package reconstruction

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"odtrecon/pkg/arena"
	"odtrecon/pkg/resample"
	"odtrecon/pkg/transform"
	"odtrecon/pkg/workpool"
)

// rotation is one channel handed to the workers for rotation.
type rotation[R arena.Real] struct {
	buf    *arena.Buffer[R]
	handle arena.Handle[R]
	batch  workpool.Batch
	ch     channel
}

// accumulator backpropagates one filtered projection at a time into the
// output channels. Filtering of the next angle overlaps the rotation of
// the previous one; the shared buffers are used round robin and every
// rotation is accumulated in submission order.
type accumulator[R arena.Real, C spectrum] struct {
	ln     int
	layout padLayout
	order  int

	plan     *transform.Plan
	exec     workpool.Executor
	channels channelSet
	logger   *slog.Logger

	// filtered projection, ln×ny×nx per channel
	filtered map[channel][]R
	// accumulated result per channel
	out map[channel][]R

	buffers []*arena.Buffer[R]
	next    int
	pending []rotation[R]
}

func newAccumulator[R arena.Real, C spectrum](
	ln int,
	l padLayout,
	plan *transform.Plan,
	exec workpool.Executor,
	cfg settings,
) (*accumulator[R, C], error) {
	acc := &accumulator[R, C]{
		ln:       ln,
		layout:   l,
		order:    cfg.InterpolationOrder,
		plan:     plan,
		exec:     exec,
		channels: newChannelSet(cfg.OnlyReal),
		logger:   cfg.logger,
		filtered: make(map[channel][]R),
		out:      make(map[channel][]R),
	}

	n := ln * l.ny * l.nx
	for _, ch := range acc.channels {
		acc.filtered[ch] = make([]R, n)
		acc.out[ch] = make([]R, n)
	}

	count := 2
	if cfg.Buffering == SingleBuffer {
		count = 1
	}
	for i := 0; i < count; i++ {
		buf, err := arena.New[R](ln, l.ny, l.nx)
		if err != nil {
			acc.Close()
			return nil, err
		}
		acc.buffers = append(acc.buffers, buf)
	}
	acc.logger.Debug("shared buffers allocated",
		"count", count,
		"values", n,
		"memory_mapped", acc.buffers[0].Mapped())
	return acc, nil
}

// add filters one projection spectrum at every depth and submits its
// rotation by -phi.
func (acc *accumulator[R, C]) add(projection, depth []C, phi float64) error {
	if err := acc.filter(projection, depth); err != nil {
		return err
	}

	angle := -phi * 180 / math.Pi
	for _, ch := range acc.channels {
		buf := acc.buffers[acc.next]
		acc.next = (acc.next + 1) % len(acc.buffers)

		if err := acc.settle(buf); err != nil {
			return err
		}
		if err := buf.Load(acc.filtered[ch]); err != nil {
			return err
		}
		handle, err := buf.Share()
		if err != nil {
			return err
		}
		acc.pending = append(acc.pending, rotation[R]{
			buf:    buf,
			handle: handle,
			batch:  acc.exec.Submit(acc.rotationTasks(handle, angle)...),
			ch:     ch,
		})
	}
	return nil
}

// filter fills the filtered volume for one projection.
func (acc *accumulator[R, C]) filter(projection, depth []C) error {
	l := acc.layout
	size := l.size()
	norm := complex(float64(size), 0)
	re := acc.filtered[realPart]
	im := acc.filtered[imagPart]

	ranges := workpool.Split(acc.ln, acc.exec.Workers())
	tasks := make([]workpool.Task, len(ranges))
	for t, r := range ranges {
		tasks[t] = func() error {
			buf := make([]complex128, size)
			for z := r.Start; z < r.End; z++ {
				dz := depth[z*size : (z+1)*size]
				for i, p := range projection {
					buf[i] = complex128(p) * complex128(dz[i])
				}
				if err := acc.plan.Inverse(buf); err != nil {
					return fmt.Errorf("depth slice %d: %w", z, err)
				}
				base := z * l.ny * l.nx
				for y := 0; y < l.ny; y++ {
					for x := 0; x < l.nx; x++ {
						v := buf[l.crop(y, x)] / norm
						j := base + y*l.nx + x
						re[j] = R(real(v))
						if im != nil {
							im[j] = R(imag(v))
						}
					}
				}
			}
			return nil
		}
	}
	if err := acc.exec.Submit(tasks...).Wait(); err != nil {
		return fmt.Errorf("inverse transform: %w", err)
	}
	return nil
}

func (acc *accumulator[R, C]) rotationTasks(h arena.Handle[R], angle float64) []workpool.Task {
	depth, height, width := h.Shape()
	bands := workpool.Split(height, acc.exec.Workers())
	tasks := make([]workpool.Task, len(bands))
	for i, b := range bands {
		tasks[i] = func() error {
			return resample.RotateBand(h.Data(), depth, height, width, b.Start, b.End, angle, acc.order)
		}
	}
	return tasks
}

// settle completes every pending rotation up to and including the one that
// holds buf, oldest first.
func (acc *accumulator[R, C]) settle(buf *arena.Buffer[R]) error {
	held := -1
	for i, p := range acc.pending {
		if p.buf == buf {
			held = i
			break
		}
	}
	for held >= 0 {
		if err := acc.complete(); err != nil {
			return err
		}
		held--
	}
	return nil
}

// complete waits for the oldest pending rotation and accumulates it.
func (acc *accumulator[R, C]) complete() error {
	p := acc.pending[0]
	acc.pending = acc.pending[1:]

	if err := p.batch.Wait(); err != nil {
		return fmt.Errorf("rotate %s channel: %w", p.ch, err)
	}
	if err := p.buf.Reclaim(p.handle); err != nil {
		return err
	}
	return p.buf.AddTo(acc.out[p.ch])
}

// flush completes every pending rotation.
func (acc *accumulator[R, C]) flush() error {
	for len(acc.pending) > 0 {
		if err := acc.complete(); err != nil {
			return err
		}
	}
	return nil
}

// volume converts the accumulated channels into the output volume.
func (acc *accumulator[R, C]) volume() (*Volume, error) {
	if err := acc.flush(); err != nil {
		return nil, err
	}
	vol := NewVolume(acc.ln, acc.layout.ny, acc.layout.nx, acc.channels.has(imagPart))
	for i, v := range acc.out[realPart] {
		vol.Real[i] = float64(v)
	}
	if vol.Imag != nil {
		for i, v := range acc.out[imagPart] {
			vol.Imag[i] = float64(v)
		}
	}
	return vol, nil
}

// Close waits for rotations still in flight and releases the shared
// buffers.
func (acc *accumulator[R, C]) Close() error {
	for _, p := range acc.pending {
		_ = p.batch.Wait()
	}
	acc.pending = nil

	var errs []error
	for _, buf := range acc.buffers {
		errs = append(errs, buf.Close())
	}
	return errors.Join(errs...)
}
