// Package nav maps the external tab query parameter onto a known view.
package nav

import "ecochat/internal/models"

// Resolve returns the view matching signal when it names a known view.
// Unknown or empty signals report false; the caller keeps its current
// view and no error is surfaced.
func Resolve(signal string, known []models.View) (models.View, bool) {
	if signal == "" {
		return "", false
	}
	for _, v := range known {
		if models.View(signal) == v {
			return v, true
		}
	}
	return "", false
}
