package geometry

import "image"

// NormalizeRect builds the rectangle spanned by two drag corners. The result
// does not depend on drag direction: Min is the top-left corner and the
// extent is the absolute difference of the two points.
func NormalizeRect(a, b image.Point) image.Rectangle {
	return image.Rect(a.X, a.Y, b.X, b.Y)
}

// ClipRect intersects r with the w x h image bounds
func ClipRect(r image.Rectangle, w, h int) image.Rectangle {
	return r.Canon().Intersect(image.Rect(0, 0, w, h))
}
