package ingest

// Options bounds the bitmap sent to the vision API
type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   int // JPEG quality, 1-100

	// MaxPixels rejects sources whose header claims more pixels than this
	// before any pixel data is decoded. Zero disables the check.
	MaxPixels int
}

// DefaultOptions returns the 800x600 bound used for camera captures
func DefaultOptions() Options {
	return Options{
		MaxWidth:  800,
		MaxHeight: 600,
		Quality:   92,
		MaxPixels: 64 * 1024 * 1024,
	}
}

// ContainerOptions bounds the image to a display container of the given width
// and a fixed 400 pixel height.
func ContainerOptions(width int) Options {
	opts := DefaultOptions()
	opts.MaxWidth = width
	opts.MaxHeight = 400
	return opts
}

// WithMaxSize returns options with custom bounds
func (opts Options) WithMaxSize(width, height int) Options {
	opts.MaxWidth = width
	opts.MaxHeight = height
	return opts
}

// WithQuality returns options with a custom JPEG quality
func (opts Options) WithQuality(quality int) Options {
	opts.Quality = quality
	return opts
}

// normalized fills zero or out-of-range values from DefaultOptions
func (opts Options) normalized() Options {
	def := DefaultOptions()
	if opts.MaxWidth < 1 {
		opts.MaxWidth = def.MaxWidth
	}
	if opts.MaxHeight < 1 {
		opts.MaxHeight = def.MaxHeight
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		opts.Quality = def.Quality
	}
	return opts
}
