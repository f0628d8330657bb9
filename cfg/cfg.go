package cfg

type (
	App struct {
		Name    string
		Version string
	}

	Mysql struct {
		Host                  string
		Port                  string
		Username              string
		Password              string
		Database              string
		MaxIdleConnection     int
		MaxOpenConnection     int
		MaxLifeTimeConnection int
	}

	GithubApi struct {
		AccessToken           string
		ApiUrl                string
		MaxConcurrentRequests int
		RequestsPerSecond     int
		ThrottleDelay         int
		CommitWindowHours     int
	}

	Saver struct {
		Limit     int
		PageSize  int
		BatchSize int
		UseKafka  bool
	}

	KafkaProducer struct {
		TopicRepo         string
		TopicPosition     string
		TopicAuthorCommit string
	}

	Kafka struct {
		Brokers  []string
		Producer KafkaProducer
	}
)

type Config struct {
	App       App
	Mysql     Mysql
	GithubApi GithubApi
	Saver     Saver
	Kafka     Kafka
}
