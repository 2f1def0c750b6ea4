package ffmpeg

// Engine bundles probing and transcoding behind one value, which is what
// the pipelines take as a dependency.
type Engine struct {
	*Prober
	*Transcoder
}

// NewEngine creates an engine from resolved binary paths.
func NewEngine(ffmpegPath, ffprobePath string) *Engine {
	return &Engine{
		Prober:     NewProber(ffprobePath),
		Transcoder: NewTranscoder(ffmpegPath),
	}
}
