package ports

import (
	"context"

	"github.com/forPelevin/scenegif/internal/types"
)

// VideoLibrary lists the video files a scene may be taken from.
type VideoLibrary interface {
	List(ctx context.Context) ([]string, error)
}

type FrameSourceOpener interface {
	Open(ctx context.Context, path string) (FrameSource, error)
}

// FrameSource is a seekable decoded video stream.
type FrameSource interface {
	Name() string
	TotalFrames() int
	// Seek moves the cursor to an absolute frame index. Indices past the end
	// make the next read report end of stream.
	Seek(ctx context.Context, frame int) error
	// NextFrame returns ok=false at end of stream.
	NextFrame(ctx context.Context, res types.Resolution) (types.Frame, bool, error)
	// Timestamp is the position of the last frame returned by NextFrame.
	Timestamp() types.Timestamp
	Close() error
}

// AnimationEncoder writes frames, in order, as a looping animation.
type AnimationEncoder interface {
	Encode(ctx context.Context, frames []types.Frame, path string) error
}
