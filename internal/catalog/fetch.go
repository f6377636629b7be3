package catalog

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shopmonkeyus/tablekit/internal/util"
)

// s3Location is a parsed s3://bucket/key url. The endpoint and region query parameters
// point the client at S3 compatible stores.
type s3Location struct {
	Bucket   string
	Key      string
	Region   string
	Endpoint string
}

func parseS3Location(u *url.URL) (*s3Location, error) {
	loc := &s3Location{
		Bucket:   u.Host,
		Key:      strings.TrimPrefix(u.Path, "/"),
		Region:   u.Query().Get("region"),
		Endpoint: u.Query().Get("endpoint"),
	}
	if loc.Bucket == "" || loc.Key == "" {
		return nil, fmt.Errorf("s3 catalog url must be s3://bucket/key: %s", u.String())
	}
	if loc.Endpoint != "" && !strings.Contains(loc.Endpoint, "://") {
		if util.IsLocalhost(loc.Endpoint) {
			loc.Endpoint = "http://" + loc.Endpoint
		} else {
			loc.Endpoint = "https://" + loc.Endpoint
		}
	}
	return loc, nil
}

func fetchS3(ctx context.Context, loc *s3Location) ([]byte, error) {
	var opts []func(*config.LoadOptions) error
	if loc.Region != "" {
		opts = append(opts, config.WithRegion(loc.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load aws config: %w", err)
	}
	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if loc.Endpoint != "" {
			o.BaseEndpoint = aws.String(loc.Endpoint)
			o.UsePathStyle = true
		}
	})
	out, err := client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching s3://%s/%s: %w", loc.Bucket, loc.Key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// fetch reads the catalog bytes from a path, a file:// url or an s3:// url.
func fetch(ctx context.Context, location string) ([]byte, Format, error) {
	p := location
	var loc *s3Location
	if strings.Contains(location, "://") {
		u, err := url.Parse(location)
		if err != nil {
			return nil, "", fmt.Errorf("unable to parse catalog url: %w", err)
		}
		switch u.Scheme {
		case "file":
			p = u.Path
		case "s3":
			loc, err = parseS3Location(u)
			if err != nil {
				return nil, "", err
			}
			p = loc.Key
		default:
			return nil, "", fmt.Errorf("unsupported catalog url scheme: %s", u.Scheme)
		}
	}
	format, err := FormatFromPath(p)
	if err != nil {
		return nil, "", err
	}
	if loc != nil {
		data, err := fetchS3(ctx, loc)
		return data, format, err
	}
	if !util.Exists(p) {
		return nil, "", fmt.Errorf("catalog not found: %s", p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, "", fmt.Errorf("error reading catalog %s: %w", p, err)
	}
	return data, format, nil
}
