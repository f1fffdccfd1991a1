package journal

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/TrevorEdris/transfer-utils/pkg/awsconfig"
	"github.com/TrevorEdris/transfer-utils/pkg/log"
	"github.com/TrevorEdris/transfer-utils/pkg/telemetry"
)

const (
	backendDynamoDB = "dynamodb"
	hashKey         = "transfer-id"
)

type DynamoDB struct {
	client *dynamodb.Client
	cfg    Config
}

var _ Journal = (*DynamoDB)(nil)

// New returns Noop when the journal is disabled, otherwise an initialized
// DynamoDB journal.
func New(ctx context.Context, cfg Config, opts awsconfig.Options) (Journal, error) {
	if !cfg.Enabled {
		return Noop, nil
	}
	d, err := NewDynamoDB(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	if err := d.Init(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func NewDynamoDB(ctx context.Context, cfg Config, opts awsconfig.Options) (*DynamoDB, error) {
	awscfg, err := awsconfig.Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &DynamoDB{
		client: dynamodb.NewFromConfig(awscfg),
		cfg:    cfg,
	}, nil
}

// Init makes sure the table exists, creating it when configured to.
func (d *DynamoDB) Init(ctx context.Context) error {
	exists, err := d.tableExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if !d.cfg.CreateMissingResources {
		return eris.Errorf("journal table %s does not exist", d.cfg.TableName)
	}
	return d.createTable(ctx)
}

func (d *DynamoDB) Put(ctx context.Context, r Record) error {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return eris.Wrap(err, "failed to marshal transfer record")
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.cfg.TableName),
		Item:      item,
	})
	if err != nil {
		telemetry.RecordJournalWrite(ctx, backendDynamoDB, "error")
		log.FromCtx(ctx).Error("Failed to store transfer record", zap.Error(err), zap.String("transferId", r.TransferID))
		return eris.Wrap(err, "failed to store transfer record")
	}

	telemetry.RecordJournalWrite(ctx, backendDynamoDB, "ok")
	log.FromCtx(ctx).Debug("Stored transfer record", zap.String("transferId", r.TransferID), zap.String("status", r.Status))
	return nil
}

func (d *DynamoDB) Get(ctx context.Context, transferID string) (*Record, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.cfg.TableName),
		Key: map[string]types.AttributeValue{
			hashKey: &types.AttributeValueMemberS{Value: transferID},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "failed to get transfer record")
	}
	if result.Item == nil {
		return nil, nil
	}

	var r Record
	if err := attributevalue.UnmarshalMap(result.Item, &r); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal transfer record")
	}
	return &r, nil
}

func (d *DynamoDB) tableExists(ctx context.Context) (bool, error) {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.cfg.TableName),
	})
	if err == nil {
		log.FromCtx(ctx).Debug("Journal table exists", zap.String("table", d.cfg.TableName))
		return true, nil
	}

	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, eris.Wrap(err, "failed to describe journal table")
}

func (d *DynamoDB) createTable(ctx context.Context) error {
	_, err := d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(d.cfg.TableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String(hashKey),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String(hashKey),
				KeyType:       types.KeyTypeHash,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		log.FromCtx(ctx).Error("Failed to create journal table", zap.String("table", d.cfg.TableName), zap.Error(err))
		return eris.Wrap(err, "failed to create journal table")
	}

	waiter := dynamodb.NewTableExistsWaiter(d.client)
	err = waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.cfg.TableName),
	}, 5*time.Minute)
	if err != nil {
		return eris.Wrap(err, "journal table did not become active")
	}

	log.FromCtx(ctx).Info("Created journal table", zap.String("table", d.cfg.TableName))
	return nil
}
