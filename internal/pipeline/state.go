package pipeline

// State is a stage of a pipeline run.
type State int

const (
	StateIdle State = iota
	StateLoadingConfig
	StateSelectingBatch
	StateFetchingFeeds
	StateRewriting
	StatePersisting
	StateRebuildingFeed
	StateAdvancingCursor
	StateDone
	StateRunFailed
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateLoadingConfig:   "loading_config",
	StateSelectingBatch:  "selecting_batch",
	StateFetchingFeeds:   "fetching_feeds",
	StateRewriting:       "rewriting",
	StatePersisting:      "persisting",
	StateRebuildingFeed:  "rebuilding_feed",
	StateAdvancingCursor: "advancing_cursor",
	StateDone:            "done",
	StateRunFailed:       "run_failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
