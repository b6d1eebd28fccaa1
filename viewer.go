package main

import (
	"fmt"
	"image/png"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tcolgate/motioncam/frame"
	"github.com/tcolgate/motioncam/motion"
)

// deltaView holds the latest key frame and rendered delta for the browser
// page.
type deltaView struct {
	sync.RWMutex
	key   *frame.Frame
	delta *motion.RenderedDelta
	log   logrus.FieldLogger
}

func newDeltaView(log logrus.FieldLogger) *deltaView {
	return &deltaView{log: log}
}

// Update records a new key frame and, when not nil, its rendered delta.
func (v *deltaView) Update(key *frame.Frame, d *motion.RenderedDelta) {
	v.Lock()
	defer v.Unlock()
	v.key = key
	if d != nil {
		v.delta = d
	}
}

func (v *deltaView) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	v.RLock()
	defer v.RUnlock()

	var img *frame.Frame
	switch r.URL.Path {
	case "/", "":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
		return
	case "/key.png":
		img = v.key
	case "/delta.png":
		if v.delta != nil {
			img = v.delta.Frame
			w.Header().Set("X-Delta-Range", fmt.Sprintf("%d-%d", v.delta.From, v.delta.To))
		}
	default:
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	if img == nil {
		http.Error(w, "no frame yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img.RGBA()); err != nil {
		v.log.WithError(err).WithField("path", r.URL.Path).Warn("writing delta viewer image")
	}
}
