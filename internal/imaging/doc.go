// Package imaging loads images and turns them into binary edge masks.
//
// It owns the "black box" image primitives the detector is built on: decoding
// (disintegration/imaging), Gaussian blur and Sobel convolution (bild, or
// OpenCV through gocv when built with -tags gocv), thresholding and pyramid
// downsampling. EdgeExtractor composes these into the edge stage of the
// circle detector.
//
// CropRegion and EncodePNG serve the tool server: analysis of part of an
// image, and images returned inline as base64 PNG.
//
// # Coordinate System
//
// Pixels are addressed as (row, col) with (0,0) at the top-left corner. Row
// grows downward and col grows rightward, so row is the image Y and col the
// image X. Masks and gradient slices are stored row-major.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. Filters and EdgeExtractor hold no
// mutable state and can be shared between goroutines.
//
// # Error Handling
//
// Unreadable or undecodable files come back as *DecodeError. Filter methods
// never fail: geometric arguments are clamped into range instead.
package imaging
