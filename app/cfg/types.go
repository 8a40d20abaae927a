package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	FeedsDir          string
	Port              string
	AccountName       string
	SchedulerInterval int
	StorageQueueSize  int
	WorkerCount       int
	APIAccessKey      string

	// Visibility windows (days)
	ArticlesHideDays int
	ArticlesKeepDays int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
