package model

import "time"

// RepoMessage là một dòng snapshot repository, dùng chung cho
// batch insert trực tiếp và cho Kafka topic repos
type RepoMessage struct {
	Name     string    `json:"name"`
	Owner    string    `json:"owner"`
	Stars    int       `json:"stars"`
	Watchers int       `json:"watchers"`
	Forks    int       `json:"forks"`
	Language string    `json:"language"`
	Updated  time.Time `json:"updated"`
}

// PositionMessage là thứ hạng của một repository trong ngày
type PositionMessage struct {
	Date     string `json:"date"`
	Repo     string `json:"repo"`
	Position int    `json:"position"`
}

// AuthorCommitMessage là số commit trong ngày của một tác giả
// trên một repository
type AuthorCommitMessage struct {
	Date       string `json:"date"`
	Repo       string `json:"repo"`
	Author     string `json:"author"`
	CommitsNum int    `json:"commits_num"`
}
