// Package id3 writes ID3v2.4 tags and front-cover art into MP3 files using
// github.com/bogem/id3v2.
package id3

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bogem/id3v2/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/clipdl/internal/media"
)

// ID3v2.4 frame identifiers.
const (
	frameTitle        = "TIT2"
	frameArtist       = "TPE1"
	frameAlbumArtist  = "TPE2"
	frameAlbum        = "TALB"
	frameGenre        = "TCON"
	frameRecorded     = "TDRC"
	frameEncoder      = "TSSE"
	frameArtistURL    = "WOAR"
	frameSourceURL    = "WOAS"
	framePublisherURL = "WPUB"
)

// Writer implements media.TagWriter.
type Writer struct {
	logger *zap.Logger
}

// New constructs a Writer.
func New(logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{logger: logger.Named("id3")}
}

// Write replaces the tag of the file at path with tags, attaching cover as
// the front-cover picture when it is non-nil.
func (w *Writer) Write(ctx context.Context, path string, tags media.TagSet, cover *media.Cover) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = tag.Close() }()

	tag.DeleteAllFrames()
	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	apply(tag, tags)

	if cover != nil {
		if len(cover.Data) == 0 {
			return fmt.Errorf("cover has no image data")
		}
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    cover.MimeType,
			PictureType: id3v2.PTFrontCover,
			Description: cover.Description,
			Picture:     cover.Data,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save tag: %w", err)
	}
	w.logger.Debug("tags written",
		zap.String("path", path),
		zap.Bool("cover", cover != nil),
	)
	return nil
}

func apply(tag *id3v2.Tag, tags media.TagSet) {
	enc := tag.DefaultEncoding()

	setText := func(id, value string) {
		if value != "" {
			tag.AddTextFrame(id, enc, value)
		}
	}
	setURL := func(id, value string) {
		if value != "" {
			tag.AddFrame(id, id3v2.UnknownFrame{Body: []byte(value)})
		}
	}

	setText(frameTitle, tags.Title)
	setText(frameArtist, tags.Artist)
	setText(frameAlbumArtist, tags.AlbumArtist)
	setText(frameAlbum, tags.Album)
	setText(frameGenre, tags.Genre)
	if tags.Year > 0 {
		setText(frameRecorded, strconv.Itoa(tags.Year))
	}
	setText(frameEncoder, tags.Encoder)
	setURL(frameArtistURL, tags.ArtistURL)
	setURL(frameSourceURL, tags.SourceURL)
	setURL(framePublisherURL, tags.PublisherURL)
}
