package eventbus

import (
	"reflect"
	"testing"

	"github.com/Shopify/sarama"
)

// fakeAdmin 只实现用到的两个方法
type fakeAdmin struct {
	sarama.ClusterAdmin
	existing map[string]bool
	created  map[string]*sarama.TopicDetail
}

func (f *fakeAdmin) DescribeTopics(topics []string) ([]*sarama.TopicMetadata, error) {
	out := make([]*sarama.TopicMetadata, 0, len(topics))
	for _, t := range topics {
		md := &sarama.TopicMetadata{Name: t, Err: sarama.ErrUnknownTopicOrPartition}
		if f.existing[t] {
			md.Err = sarama.ErrNoError
		}
		out = append(out, md)
	}
	return out, nil
}

func (f *fakeAdmin) CreateTopic(topic string, detail *sarama.TopicDetail, _ bool) error {
	if f.existing[topic] {
		return sarama.ErrTopicAlreadyExists
	}
	f.created[topic] = detail
	return nil
}

func TestEnsureTopics(t *testing.T) {
	admin := &fakeAdmin{
		existing: map[string]bool{"socialnet.notification.created": true},
		created:  map[string]*sarama.TopicDetail{},
	}
	topics := topicsFor("")
	if want := []string{"socialnet.notification.created", "socialnet.message.created"}; !reflect.DeepEqual(topics, want) {
		t.Fatalf("topics = %v", topics)
	}
	if err := ensureTopics(admin, topics, 0, 3); err != nil {
		t.Fatal(err)
	}
	if len(admin.created) != 1 {
		t.Fatalf("created = %v", admin.created)
	}
	td := admin.created["socialnet.message.created"]
	if td == nil || td.NumPartitions != 3 || td.ReplicationFactor != 3 || *td.ConfigEntries["min.insync.replicas"] != "2" {
		t.Errorf("detail = %+v", td)
	}
}
