package transfer_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/TrevorEdris/transfer-utils/pkg/engine"
	"github.com/TrevorEdris/transfer-utils/pkg/errors"
	"github.com/TrevorEdris/transfer-utils/pkg/fs"
	"github.com/TrevorEdris/transfer-utils/pkg/transfer"
)

var _ = Describe("Upload", func() {
	var (
		ctx     context.Context
		session *fakeSession
		file    *fs.File
	)

	BeforeEach(func() {
		ctx = context.Background()
		session = newFakeSession()
		file = fs.NewFile("/home/user/outbox/wat.txt", 3, time.Now())
	})

	DescribeTable("composes the remote path",
		func(dir, name string, expected []string) {
			_, err := transfer.UploadFile(ctx, session, file, transfer.UploadOptions{
				RemoteDirectory: dir,
				RemoteFileName:  name,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Calls()).To(Equal(expected))
		},
		Entry("without a directory", "", "", []string{
			"put wat.txt wat.txt",
		}),
		Entry("with a blank directory", "   ", "", []string{
			"put wat.txt wat.txt",
		}),
		Entry("with an explicit name", "", "renamed.txt", []string{
			"put wat.txt renamed.txt",
		}),
		Entry("with a single directory", "desktop", "", []string{
			"exists desktop",
			"mkdir desktop",
			"put wat.txt /desktop/wat.txt",
		}),
		Entry("with stray delimiters", `/desktop\`, "", []string{
			"exists desktop",
			"mkdir desktop",
			"put wat.txt /desktop/wat.txt",
		}),
		Entry("with a nested directory", "cheech/chong/marvin/gaye/", "", []string{
			"exists cheech",
			"mkdir cheech",
			"exists cheech/chong",
			"mkdir cheech/chong",
			"exists cheech/chong/marvin",
			"mkdir cheech/chong/marvin",
			"exists cheech/chong/marvin/gaye",
			"mkdir cheech/chong/marvin/gaye",
			"put wat.txt /cheech/chong/marvin/gaye/wat.txt",
		}),
	)

	It("skips directory creation when asked", func() {
		_, err := transfer.UploadFile(ctx, session, file, transfer.UploadOptions{
			RemoteDirectory:     "a/b",
			SkipEnsureStructure: true,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(session.Calls()).To(Equal([]string{"put wat.txt /a/b/wat.txt"}))
	})

	It("returns the outcome of a successful put", func() {
		outcome, err := transfer.UploadFile(ctx, session, file, transfer.UploadOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.IsSuccess()).To(BeTrue())
		Expect(outcome.Bytes()).To(Equal(int64(42)))
	})

	It("escalates a failure record", func() {
		session.outcome = &engine.TransferOutcome{
			Failures: []engine.TransferFailure{{
				LocalPath:  file.Absolute,
				RemotePath: "wat.txt",
				Err:        eris.New("target exists"),
			}},
		}

		outcome, err := transfer.UploadFile(ctx, session, file, transfer.UploadOptions{})
		Expect(err).To(MatchError(errors.ErrTransferFailed))
		Expect(err.Error()).To(ContainSubstring("target exists"))
		Expect(outcome).NotTo(BeNil())
		Expect(outcome.Failures).To(HaveLen(1))
	})

	It("propagates protocol errors", func() {
		session.putErr = errors.NewProtocolError("put", "wat.txt", eris.New("no space left"))

		outcome, err := transfer.UploadFile(ctx, session, file, transfer.UploadOptions{})
		Expect(outcome).To(BeNil())
		Expect(errors.IsProtocolError(err)).To(BeTrue())
		Expect(err).NotTo(MatchError(errors.ErrTransferFailed))
	})

	It("rejects invalid transfer options before touching the session", func() {
		_, err := transfer.UploadFile(ctx, session, file, transfer.UploadOptions{
			RemoteDirectory: "a",
			Transfer:        &engine.TransferOptions{SpeedLimit: -1},
		})
		Expect(err).To(MatchError(errors.ErrInvalidOptions))
		Expect(session.Calls()).To(BeEmpty())
	})

	It("cancels a blocked put", func(sctx SpecContext) {
		session.blockPut = true
		cctx, cancel := context.WithCancel(sctx)
		defer cancel()

		go func() {
			defer GinkgoRecover()
			<-session.putStarted
			cancel()
		}()

		outcome, err := transfer.UploadFile(cctx, session, file, transfer.UploadOptions{RemoteDirectory: "desktop"})
		Expect(err).To(MatchError(errors.ErrCancelled))
		Expect(outcome).To(BeNil())
		Expect(session.aborts.Load()).To(Equal(int32(1)))
		Expect(session.dirs).To(HaveKey("desktop"))
	}, SpecTimeout(5*time.Second))

	It("uploads by path", func() {
		f, err := os.CreateTemp("", "upload-*.bin")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.Remove, f.Name())
		Expect(f.Close()).To(Succeed())

		_, err = transfer.UploadPath(ctx, session, f.Name(), transfer.UploadOptions{RemoteFileName: "x.bin"})
		Expect(err).NotTo(HaveOccurred())
		Expect(session.Calls()).To(Equal([]string{"put " + filepath.Base(f.Name()) + " x.bin"}))
	})

	DescribeTable("reporting the target path",
		func(dir, name, expected string) {
			Expect(transfer.Target("wat.txt", transfer.UploadOptions{RemoteDirectory: dir, RemoteFileName: name})).To(Equal(expected))
		},
		Entry("bare name", "", "", "wat.txt"),
		Entry("renamed", "", "other.txt", "other.txt"),
		Entry("mixed delimiters", `\in/box\`, "", "/in/box/wat.txt"),
	)

	It("classifies upload errors", func() {
		Expect(transfer.Status(nil)).To(Equal(transfer.StatusSucceeded))
		Expect(transfer.Status(eris.Wrap(errors.ErrCancelled, "stop"))).To(Equal(transfer.StatusCancelled))
		Expect(transfer.Status(errors.ErrTransferFailed)).To(Equal(transfer.StatusFailed))
	})
})
