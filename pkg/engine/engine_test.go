package engine_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/TrevorEdris/transfer-utils/pkg/engine"
	pkgerrors "github.com/TrevorEdris/transfer-utils/pkg/errors"
)

var _ = Describe("Engine", func() {
	Context("ParseProtocol", func() {
		It("defaults to sftp", func() {
			p, err := engine.ParseProtocol("")
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(engine.ProtocolSFTP))
		})

		It("is case-insensitive", func() {
			p, err := engine.ParseProtocol(" S3 ")
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(engine.ProtocolS3))
		})

		It("rejects unknown protocols", func() {
			_, err := engine.ParseProtocol("gopher")
			Expect(err).To(MatchError(pkgerrors.ErrUnsupportedProtocol))
		})
	})

	Context("ConnectionOptions", func() {
		It("requires a host for sftp", func() {
			err := engine.ConnectionOptions{Protocol: engine.ProtocolSFTP}.Validate()
			Expect(err).To(MatchError(pkgerrors.ErrInvalidOptions))
		})

		It("does not require a host for s3", func() {
			err := engine.ConnectionOptions{Protocol: engine.ProtocolS3}.Validate()
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects out of range ports", func() {
			err := engine.ConnectionOptions{Protocol: engine.ProtocolSFTP, Host: "h", Port: 70000}.Validate()
			Expect(err).To(MatchError(pkgerrors.ErrInvalidOptions))
		})

		It("fills in the default port", func() {
			o := engine.ConnectionOptions{Host: "example.com"}
			Expect(o.Address(22)).To(Equal("example.com:22"))
			o.Port = 2222
			Expect(o.Address(22)).To(Equal("example.com:2222"))
		})
	})

	Context("TransferOutcome", func() {
		It("passes when there are no failures", func() {
			o := &engine.TransferOutcome{}
			o.AddTransfer(engine.Transfer{LocalPath: "a", RemotePath: "/a", Bytes: 3})
			o.AddTransfer(engine.Transfer{LocalPath: "b", RemotePath: "/b", Bytes: 4})
			Expect(o.IsSuccess()).To(BeTrue())
			Expect(o.Check()).To(Succeed())
			Expect(o.Bytes()).To(Equal(int64(7)))
		})

		It("escalates a single failure record", func() {
			o := &engine.TransferOutcome{}
			o.AddFailure(engine.TransferFailure{LocalPath: "a", RemotePath: "/a", Err: errors.New("permission denied")})
			Expect(o.IsSuccess()).To(BeFalse())
			err := o.Check()
			Expect(err).To(MatchError(pkgerrors.ErrTransferFailed))
			Expect(err.Error()).To(ContainSubstring("permission denied"))
		})

		It("counts multiple failure records", func() {
			o := &engine.TransferOutcome{}
			o.AddFailure(engine.TransferFailure{Err: errors.New("one")})
			o.AddFailure(engine.TransferFailure{Err: errors.New("two")})
			Expect(o.Check().Error()).To(ContainSubstring("2 files failed"))
		})

		It("treats a missing outcome as a failure", func() {
			var o *engine.TransferOutcome
			Expect(o.IsSuccess()).To(BeFalse())
			Expect(o.Check()).To(MatchError(pkgerrors.ErrTransferFailed))
		})
	})

	Context("SessionError", func() {
		It("classifies protocol and local errors", func() {
			proto := pkgerrors.NewProtocolError("put", "/a", errors.New("connection reset"))
			local := pkgerrors.NewLocalError("put", "/a", pkgerrors.ErrAborted)

			Expect(pkgerrors.IsSessionError(proto)).To(BeTrue())
			Expect(pkgerrors.IsProtocolError(proto)).To(BeTrue())
			Expect(pkgerrors.IsLocalError(proto)).To(BeFalse())

			Expect(pkgerrors.IsLocalError(local)).To(BeTrue())
			Expect(local).To(MatchError(pkgerrors.ErrAborted))
			Expect(local.Error()).To(ContainSubstring("local error during put /a"))

			Expect(pkgerrors.IsSessionError(errors.New("plain"))).To(BeFalse())
		})
	})
})
