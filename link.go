// Package bclink links bytecode images: it concatenates a program with its libraries and resolves the symbolic
// references between them.
//
// A minimal example, leaving "print" to the loader:
//
//	cfg := bclink.NewLinkConfig().WithAllowedSymbols("print")
//	bin, report, err := bclink.Link(cfg, app, lib)
package bclink

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/tetratelabs/bclink/internal/seekbuf"
	"github.com/tetratelabs/bclink/linker"
)

var errNoImages = errors.New("no images to link")

// Link concatenates images in order and self-links the result. None of the inputs is modified.
//
// The first image's header carries over to the result. Link fails on the first image that does not match the writer
// version of the first, and on any reference the config does not allow to stay unresolved. cfg defaults to
// NewLinkConfig if nil.
func Link(cfg *LinkConfig, images ...[]byte) ([]byte, *linker.Report, error) {
	if len(images) == 0 {
		return nil, nil, errNoImages
	}
	if cfg == nil {
		cfg = NewLinkConfig()
	}
	log := commonlog.GetLogger("bclink")

	out := seekbuf.New(images[0])
	for i, in := range images[1:] {
		if err := linker.Concatenate(out, in); err != nil {
			return nil, nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		log.Debugf("concatenated image %d (%d bytes)", i+1, len(in))
	}

	bin := out.Bytes()
	report, err := linker.SelfLink(bin, cfg.linkTarget(), cfg.options()...)
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("linked %d images into %d bytes", len(images), len(bin))
	return bin, report, nil
}
