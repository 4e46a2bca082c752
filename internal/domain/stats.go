package domain

// StatusCount is the number of tickets in one status.
type StatusCount struct {
	Status TicketStatus
	Count  int64
}

// RatingBucket is one bar of the rating histogram.
type RatingBucket struct {
	Rating Rating
	Count  int64
}

// CategoryCount is how often a category string was used.
type CategoryCount struct {
	Category string
	Count    int64
}

// TicketStats aggregates a set of tickets.
type TicketStats struct {
	TotalCount         int64
	FeedbackCount      int64
	RequestCount       int64
	StatusCounts       []StatusCount
	AverageRating      float64
	RatingDistribution []RatingBucket
	PopularCategories  []CategoryCount
}
