package dl

// Status discriminates progress events emitted while a run is in flight.
type Status string

const (
	StatusDownloading Status = "downloading"
	StatusSuccess     Status = "success"
	StatusError       Status = "error"
)

// Event is one progress update from the sequential downloader. Current and
// Total count units within the run's work set, not the whole item.
type Event struct {
	RunID     string
	ItemID    string
	Status    Status
	Unit      int
	UnitLabel string
	Current   int
	Total     int
	Err       string
}
