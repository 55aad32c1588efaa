package eventbus

import (
	"errors"

	"github.com/Shopify/sarama"

	"SocialNet/logger"
	"SocialNet/tools/errs"
)

func strPtr(s string) *string { return &s }

// ensureTopics 不存在就创建；已存在（包括并发创建）直接跳过
func ensureTopics(admin sarama.ClusterAdmin, topics []string, partitions int32, rf int16) error {
	if partitions <= 0 {
		partitions = 3
	}
	if rf <= 0 {
		rf = 1
	}
	minISR := "1"
	if rf >= 3 {
		minISR = "2"
	}
	for _, t := range topics {
		descs, err := admin.DescribeTopics([]string{t})
		if err == nil && len(descs) == 1 && errors.Is(descs[0].Err, sarama.ErrNoError) {
			logger.Debugf("[eventbus] topic exists: %s (partitions=%d)", t, len(descs[0].Partitions))
			continue
		}
		td := &sarama.TopicDetail{
			NumPartitions:     partitions,
			ReplicationFactor: rf,
			ConfigEntries: map[string]*string{
				"cleanup.policy":                 strPtr("delete"),
				"min.insync.replicas":            strPtr(minISR),
				"unclean.leader.election.enable": strPtr("false"),
				"compression.type":               strPtr("producer"),
			},
		}
		if err := admin.CreateTopic(t, td, false); err != nil {
			var te *sarama.TopicError
			if errors.Is(err, sarama.ErrTopicAlreadyExists) || (errors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists) {
				continue
			}
			return errs.WrapMsg(err, "create topic", "topic", t)
		}
		logger.Infof("[eventbus] topic created: %s (partitions=%d, rf=%d)", t, partitions, rf)
	}
	return nil
}

func topicsFor(prefix string) []string {
	if prefix == "" {
		prefix = "socialnet"
	}
	return []string{prefix + "." + NotificationCreated, prefix + "." + MessageCreated}
}
