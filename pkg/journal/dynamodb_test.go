package journal_test

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/TrevorEdris/transfer-utils/pkg/awsconfig"
	"github.com/TrevorEdris/transfer-utils/pkg/journal"
)

var _ = Describe("DynamoDB", Label("container"), func() {
	var opts awsconfig.Options

	BeforeEach(func() {
		ctx := context.Background()
		req := testcontainers.ContainerRequest{
			Image:        "localstack/localstack:latest",
			ExposedPorts: []string{"4566/tcp"},
			Env: map[string]string{
				"SERVICES": "dynamodb",
			},
			WaitingFor: wait.ForHTTP("/_localstack/health").WithPort("4566/tcp").WithStatusCodeMatcher(func(status int) bool {
				return status == http.StatusOK
			}),
		}

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			Skip("LocalStack unavailable: " + err.Error())
		}
		DeferCleanup(func() {
			_ = container.Terminate(context.Background())
		})

		p, err := container.MappedPort(ctx, "4566")
		Expect(err).NotTo(HaveOccurred())
		h, err := container.Host(ctx)
		Expect(err).NotTo(HaveOccurred())

		opts = awsconfig.Options{
			Endpoint:        "http://" + h + ":" + p.Port(),
			Region:          "us-east-1",
			AccessKeyID:     "fakekey",
			SecretAccessKey: "fakesecret",
		}
	})

	It("creates the table once", func() {
		d, err := journal.NewDynamoDB(context.TODO(), journal.Config{
			Enabled:                true,
			TableName:              "transfers",
			CreateMissingResources: true,
		}, opts)
		Expect(err).NotTo(HaveOccurred())

		Expect(d.Init(context.TODO())).To(Succeed())
		// The second call finds the existing table.
		Expect(d.Init(context.TODO())).To(Succeed())
	})

	It("refuses to create a missing table unless allowed", func() {
		d, err := journal.NewDynamoDB(context.TODO(), journal.Config{
			Enabled:   true,
			TableName: "transfers",
		}, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Init(context.TODO())).To(MatchError(ContainSubstring("does not exist")))
	})

	It("stores and retrieves records", func() {
		j, err := journal.New(context.TODO(), journal.Config{
			Enabled:                true,
			TableName:              "transfers",
			CreateMissingResources: true,
		}, opts)
		Expect(err).NotTo(HaveOccurred())

		r := journal.Record{
			TransferID: "8d0f7a11",
			Host:       "bucket",
			Protocol:   "s3",
			LocalPath:  "/tmp/a.bin",
			RemotePath: "/bucket/a.bin",
			Bytes:      7,
			Status:     journal.StatusFailed,
			Error:      "transfer failed",
			StartedAt:  10,
			FinishedAt: 20,
		}
		Expect(j.Put(context.TODO(), r)).To(Succeed())

		got, err := j.Get(context.TODO(), r.TransferID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).NotTo(BeNil())
		Expect(*got).To(Equal(r))

		// Re-recording the same transfer replaces it.
		r.Status = journal.StatusSucceeded
		r.Error = ""
		Expect(j.Put(context.TODO(), r)).To(Succeed())
		got, err = j.Get(context.TODO(), r.TransferID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(journal.StatusSucceeded))
		Expect(got.Error).To(BeEmpty())

		got, err = j.Get(context.TODO(), "unknown")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeNil())
	})
})
