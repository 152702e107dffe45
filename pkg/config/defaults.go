package config

// Threshold defaults.
const (
	DefaultMinRepoCommits   = 20
	DefaultMinAuthorCommits = 5
	DefaultMinTrendCommits  = 10
)

// Analysis defaults.
const (
	DefaultConcurrency = 8
	DefaultNoMerges    = false
	DefaultFirstParent = false
)

// Ranking defaults.
const (
	DefaultSortBy = "score"
	DefaultLimit  = 0
	DefaultMerge  = false
)

// Identity defaults.
const (
	DefaultPeopleDict      = ""
	DefaultExactSignatures = false
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Telemetry defaults.
const (
	DefaultOTLPEndpoint = ""
	DefaultOTLPInsecure = false
	DefaultSampleRatio  = 1.0
	DefaultDebugTrace   = false
	DefaultTraceVerbose = false
)

const (
	configName = "code996"
	envPrefix  = "CODE996"
	maxWorkers = 256
)
