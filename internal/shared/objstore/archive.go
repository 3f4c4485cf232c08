package objstore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/bitfantasy/stitchquote/internal/config"
)

// Archiver 批量导入文档归档器
type Archiver struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewArchiver 创建归档器并确保桶存在
func NewArchiver(ctx context.Context, cfg config.MinIOConfig, logger *zap.Logger) (*Archiver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建对象存储客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("检查桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建桶失败: %w", err)
		}
	}

	return &Archiver{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Archive 归档处理过的批量文档，按日期分目录，返回对象路径
func (a *Archiver) Archive(ctx context.Context, name string, data []byte) (string, error) {
	objectName := path.Join("imports", time.Now().Format("2006-01-02"), name)
	_, err := a.client.PutObject(ctx, a.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return "", fmt.Errorf("归档文档失败: %w", err)
	}

	a.logger.Info("batch document archived",
		zap.String("bucket", a.bucket),
		zap.String("object", objectName),
		zap.Int("bytes", len(data)))
	return objectName, nil
}
