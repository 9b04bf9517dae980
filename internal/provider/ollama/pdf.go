package ollama

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// maxPageImages bounds the images sent in one chat request.
const maxPageImages = 10

var pdfcpuInit sync.Once

type pageImage struct {
	page, obj int
	data      []byte
}

// pageImages returns the embedded JPEG and PNG images of a scanned PDF in
// page order. A PDF with only text content yields none.
func pageImages(data []byte) (images [][]byte, err error) {
	// pdfcpu panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			images, err = nil, fmt.Errorf("reading pdf: %v", r)
		}
	}()
	pdfcpuInit.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var found []pageImage
	err = api.ExtractImages(bytes.NewReader(data), nil, func(img model.Image, _ bool, _ int) error {
		if img.Thumb || img.Reader == nil {
			return nil
		}
		if img.FileType != "jpg" && img.FileType != "png" {
			return nil
		}
		b, err := io.ReadAll(img)
		if err != nil {
			return err
		}
		found = append(found, pageImage{page: img.PageNr, obj: img.ObjNr, data: b})
		return nil
	}, conf)
	if err != nil {
		return nil, fmt.Errorf("extracting pdf images: %w", err)
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].page != found[j].page {
			return found[i].page < found[j].page
		}
		return found[i].obj < found[j].obj
	})
	for _, img := range found {
		if len(images) == maxPageImages {
			break
		}
		images = append(images, img.data)
	}
	return images, nil
}
