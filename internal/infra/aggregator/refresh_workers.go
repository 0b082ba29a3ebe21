package aggregator

const defaultRefreshConcurrency = 4

func refreshWorkerCount(limit, total int) int {
	if total <= 0 {
		return 0
	}
	if limit <= 0 {
		limit = defaultRefreshConcurrency
	}
	if limit > total {
		return total
	}
	return limit
}
