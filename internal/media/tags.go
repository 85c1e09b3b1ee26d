package media

// Fixed tag values.
const (
	AlbumName     = "YouTube"
	EncoderName   = "LAME"
	CoverMimeType = "image/jpeg"
	CoverCaption  = "thumbnail"
)

// TagSet is the descriptive metadata written into a finished file.
type TagSet struct {
	Title        string
	Artist       string
	AlbumArtist  string
	Album        string
	Genre        string
	ArtistURL    string
	SourceURL    string
	PublisherURL string
	Year         int
	Encoder      string
}

// BuildTagSet derives the tag set for a resolved item. The release year is
// the calendar year of the publish date; zero when the date is unknown.
func BuildTagSet(meta Metadata) TagSet {
	year := 0
	if !meta.PublishDate.IsZero() {
		year = meta.PublishDate.Year()
	}
	return TagSet{
		Title:        meta.Title,
		Artist:       meta.AuthorName,
		AlbumArtist:  meta.AuthorName,
		Album:        AlbumName,
		Genre:        meta.Category,
		ArtistURL:    meta.AuthorURL,
		SourceURL:    meta.CanonicalURL,
		PublisherURL: meta.CanonicalURL,
		Year:         year,
		Encoder:      EncoderName,
	}
}
