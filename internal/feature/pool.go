package feature

import (
	"image"
	"sync"
)

// rasterPool reuses RGBA buffers for the fixed normalization raster so
// high-volume batches don't churn the GC with 64x64 allocations.
var rasterPool = sync.Pool{
	New: func() interface{} {
		return image.NewRGBA(image.Rect(0, 0, rasterSize, rasterSize))
	},
}

func getRaster() *image.RGBA {
	return rasterPool.Get().(*image.RGBA)
}

func putRaster(img *image.RGBA) {
	if img == nil {
		return
	}
	rasterPool.Put(img)
}
