// Package ui handles everything opusdl prints for people rather than logs:
// colored status lines, the per-run progress display and desktop
// notifications for watch mode.
//
// Column widths are measured in terminal cells so titles in Chinese or
// Japanese line up with Latin ones.
package ui
