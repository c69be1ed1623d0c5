package compiler

import "github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"

// Defaults mirror a stock site configuration.
const (
	DefaultContentType      = "post"
	DefaultPageSize         = 10
	DefaultMaxResultsWindow = 10000
	DefaultSortKey          = "date"
	DefaultStickyWeight     = 20
	DefaultSearchAlgorithm  = "4.0"
)

// Config holds site-level settings the compiler reads.
type Config struct {
	// ContentType is the managed content type slug.
	ContentType string
	// PrimaryType restricts queries that name no post type and carry no search text.
	PrimaryType       string
	DefaultPageSize   int
	MaxResultsWindow  int
	DefaultSort       string
	DefaultOrder      dsl.Order
	PublicStatuses    []string
	ProtectedStatuses []string
	PrivateStatuses   []string
	StickyIDs         []int64
	StickyWeight      float64
	SearchAlgorithm   string
	// MimeTypes lists known type/subtype values used to expand bare top-level types.
	MimeTypes []string
	// DefaultSearchFields are matched when a query names none.
	DefaultSearchFields []string
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		ContentType:         DefaultContentType,
		PrimaryType:         DefaultContentType,
		DefaultPageSize:     DefaultPageSize,
		MaxResultsWindow:    DefaultMaxResultsWindow,
		DefaultSort:         DefaultSortKey,
		DefaultOrder:        dsl.Desc,
		PublicStatuses:      []string{"publish"},
		ProtectedStatuses:   []string{"future", "draft", "pending"},
		PrivateStatuses:     []string{"private"},
		StickyWeight:        DefaultStickyWeight,
		SearchAlgorithm:     DefaultSearchAlgorithm,
		MimeTypes:           DefaultMimeTypes(),
		DefaultSearchFields: []string{"post_title", "post_excerpt", "post_content"},
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ContentType == "" {
		c.ContentType = d.ContentType
	}
	if c.PrimaryType == "" {
		c.PrimaryType = d.PrimaryType
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = d.DefaultPageSize
	}
	if c.MaxResultsWindow <= 0 {
		c.MaxResultsWindow = d.MaxResultsWindow
	}
	if c.DefaultSort == "" {
		c.DefaultSort = d.DefaultSort
	}
	if c.DefaultOrder == "" {
		c.DefaultOrder = d.DefaultOrder
	}
	if c.PublicStatuses == nil {
		c.PublicStatuses = d.PublicStatuses
	}
	if c.ProtectedStatuses == nil {
		c.ProtectedStatuses = d.ProtectedStatuses
	}
	if c.PrivateStatuses == nil {
		c.PrivateStatuses = d.PrivateStatuses
	}
	if c.StickyWeight == 0 {
		c.StickyWeight = d.StickyWeight
	}
	if c.SearchAlgorithm == "" {
		c.SearchAlgorithm = d.SearchAlgorithm
	}
	if c.MimeTypes == nil {
		c.MimeTypes = d.MimeTypes
	}
	if len(c.DefaultSearchFields) == 0 {
		c.DefaultSearchFields = d.DefaultSearchFields
	}
	return c
}

// DefaultMimeTypes lists the upload types a stock site accepts.
func DefaultMimeTypes() []string {
	return []string{
		"image/jpeg", "image/gif", "image/png", "image/bmp", "image/tiff", "image/webp", "image/avif", "image/x-icon", "image/heic",
		"video/x-ms-asf", "video/x-ms-wmv", "video/x-ms-wmx", "video/x-ms-wm", "video/avi", "video/divx", "video/x-flv",
		"video/quicktime", "video/mpeg", "video/mp4", "video/ogg", "video/webm", "video/x-matroska", "video/3gpp", "video/3gpp2",
		"text/plain", "text/csv", "text/tab-separated-values", "text/calendar", "text/richtext", "text/css", "text/html", "text/vtt",
		"application/ttaf+xml",
		"audio/mpeg", "audio/aac", "audio/x-realaudio", "audio/wav", "audio/ogg", "audio/flac", "audio/midi", "audio/x-ms-wma",
		"audio/x-ms-wax", "audio/x-matroska",
		"application/rtf", "application/javascript", "application/pdf", "application/x-shockwave-flash", "application/java",
		"application/x-tar", "application/zip", "application/x-gzip", "application/rar", "application/x-7z-compressed",
		"application/x-msdownload", "application/octet-stream",
		"application/msword", "application/vnd.ms-powerpoint", "application/vnd.ms-write", "application/vnd.ms-excel",
		"application/vnd.ms-access", "application/vnd.ms-project",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.oasis.opendocument.text", "application/vnd.oasis.opendocument.spreadsheet",
		"application/vnd.apple.keynote", "application/vnd.apple.numbers", "application/vnd.apple.pages",
	}
}
