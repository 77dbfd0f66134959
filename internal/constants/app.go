package constants

import (
	"time"
)

// Application identity
const (
	// AppName - binary name, config directory name and lock-file stem
	AppName = "kitsu-fetch"

	// RootFolderPrefix - project roots are created as <downloads>/Kitsu_<project>
	RootFolderPrefix = "Kitsu_"

	// LockFileName - per-root lock taken for the duration of a download run
	LockFileName = ".kitsu-fetch.lock"

	// TempSuffix - suffix of in-flight download files
	TempSuffix = ".tmp"
)

// Hierarchy placeholders
const (
	NoSequence    = "No_Sequence"
	NoEpisode     = "No_Episode"
	NoParent      = "No_Parent"
	UnknownParent = "Unknown_Parent"
	// ParentFallbackPrefix is followed by the first ParentIDPrefixLen chars of the id
	ParentFallbackPrefix = "Parent_"
	ParentIDPrefixLen    = 8

	// AssetsFolder - asset entities live under <root>/Assets/<type>/<name>
	AssetsFolder     = "Assets"
	DefaultAssetType = "Props"
	DefaultTaskType  = "Task"

	// DefaultPreviewExtension - previews without an extension are assumed to be movies
	DefaultPreviewExtension = "mp4"
)

// Download acceptance heuristics.
// The server sometimes answers 200 OK with a short error body, so small files
// are treated as suspect unless their size can be checked against the expected one.
const (
	// LargeFileFloor - files above this are accepted without a size reference (1 MB)
	LargeFileFloor = 1_000_000

	// MinUnknownSize - weaker acceptance floor when the server sent no content length (100 KB)
	MinUnknownSize = 100_000

	// MinSizeRatio - downloaded/expected ratio required when the size is known
	MinSizeRatio = 0.95
)

// Download retry behaviour
const (
	// AttemptsPerURL - attempts made against a single candidate URL
	AttemptsPerURL = 3

	// ValidationBackoff - wait after a body failed size validation
	ValidationBackoff = 2 * time.Second

	// NetworkBackoff - wait after a timeout or connection error
	NetworkBackoff = 3 * time.Second

	// ErrorBackoff - wait after any other failure (unexpected status, local I/O)
	ErrorBackoff = 2 * time.Second

	// DownloadChunkSize - buffer used when streaming bodies to disk (512 KiB)
	DownloadChunkSize = 512 * 1024

	// DefaultWorkers - concurrent downloads
	DefaultWorkers = 4

	// MaxWorkers - upper bound accepted from config/flags
	MaxWorkers = 32
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - connect timeout for downloads and API calls (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPReadTimeout - a download body that delivers no bytes for this long is abandoned (10 minutes)
	HTTPReadTimeout = 600 * time.Second

	// APIClientTimeout - overall timeout for a single tracking-service JSON call
	APIClientTimeout = 60 * time.Second

	// EntityLookupTimeout - generic entity-by-id lookups used for parent names
	EntityLookupTimeout = 10 * time.Second

	// ListingFallbackTimeout - REST listings of episodes/sequences
	ListingFallbackTimeout = 15 * time.Second
)

// Tracking-service rate limiting
const (
	// APIRatePerSec - sustained request rate against the tracking service
	APIRatePerSec = 10.0

	// APIBurst - requests allowed in a burst before the rate applies
	APIBurst = 20

	// APIRetryMax - transport-level retries for 5xx/429 responses
	APIRetryMax = 3

	// RateLimitWarningThreshold - delay threshold to show warning (2 seconds)
	RateLimitWarningThreshold = 2 * time.Second

	// RateLimitWarningInterval - minimum interval between warnings (10 seconds)
	RateLimitWarningInterval = 10 * time.Second
)

// Disk space
const (
	// DiskSpaceBufferPercent - extra free space required on top of the queue size
	DiskSpaceBufferPercent = 0.10
)

// Progress
const (
	// ProgressRefreshRate - redraw interval of the download bars
	ProgressRefreshRate = 300 * time.Millisecond
)
