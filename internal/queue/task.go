package queue

type TaskType string

const (
	TaskTypeVerifyArgument TaskType = "verify_argument"
	TaskTypeVerifyTopic    TaskType = "verify_topic"
)
