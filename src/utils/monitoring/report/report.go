package report

type Report struct {
	Run            *RunReport            `json:"run,omitempty"`
	Transport      *TransportReport      `json:"transport,omitempty"`
	Fetcher        *FetcherReport        `json:"fetcher,omitempty"`
	Auditor        *AuditorReport        `json:"auditor,omitempty"`
	RedisPublisher *RedisPublisherReport `json:"redis_publisher,omitempty"`
}
