package cfg

type MockLoader struct{}

func NewMockLoader() (*MockLoader, error) {
	return &MockLoader{}, nil
}

func (yl *MockLoader) Load() (*Config, error) {
	return &Config{
		// App
		App: App{
			Name:    "github-saver",
			Version: "0.0.1",
		},

		// Mysql
		Mysql: Mysql{
			Host:                  "127.0.0.1",
			Password:              "root",
			Username:              "root",
			Port:                  "3306",
			Database:              "github_saver",
			MaxIdleConnection:     10,
			MaxOpenConnection:     100,
			MaxLifeTimeConnection: 3600,
		},

		// GithubApi
		GithubApi: GithubApi{
			AccessToken:           "",
			ApiUrl:                "https://api.github.com",
			MaxConcurrentRequests: 20,
			RequestsPerSecond:     20,
			ThrottleDelay:         50,
			CommitWindowHours:     24,
		},

		// Saver
		Saver: Saver{
			Limit:     10,
			PageSize:  20,
			BatchSize: 20,
			UseKafka:  false,
		},

		// Kafka
		Kafka: Kafka{
			Brokers: []string{"127.0.0.1:9092"},
			Producer: KafkaProducer{
				TopicRepo:         "github_saver.repos",
				TopicPosition:     "github_saver.positions",
				TopicAuthorCommit: "github_saver.author_commits",
			},
		},
	}, nil
}
