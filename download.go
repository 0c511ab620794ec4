package mlp_go

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	trainImagesFile = "train-images-idx3-ubyte.gz"
	trainLabelsFile = "train-labels-idx1-ubyte.gz"
	testImagesFile  = "t10k-images-idx3-ubyte.gz"
	testLabelsFile  = "t10k-labels-idx1-ubyte.gz"
)

// Both datasets are published with the same file names
func datasetFiles(train bool) (images, labels string) {
	if train {
		return trainImagesFile, trainLabelsFile
	}
	return testImagesFile, testLabelsFile
}

var (
	mirrors = map[Kind]string{
		MNIST:        "https://ossci-datasets.s3.amazonaws.com/mnist/",
		FashionMNIST: "http://fashion-mnist.s3-website.eu-central-1.amazonaws.com/",
	}
	checksums = map[Kind]map[string]string{
		MNIST: {
			trainImagesFile: "f68b3c2dcbeaaa9fbdd348bbdeb94873",
			trainLabelsFile: "d53e105ee54ea40749a09fcbcd1e9432",
			testImagesFile:  "9fb629c4189551a2d022fa330f9573f3",
			testLabelsFile:  "ec29112dd5afa0611ce80d1b7f02629c",
		},
		FashionMNIST: {
			trainImagesFile: "8d4fb7e6c68d591d4c3dfef9ec88bf0d",
			trainLabelsFile: "25c81989df183df01b3e8a0aad5dffbe",
			testImagesFile:  "bef4ecab320f06d8554ea6380940ec79",
			testLabelsFile:  "bb300cfdad3c16e7a12a480ee83cd310",
		},
	}
)

// Downloader Fetches dataset files. BaseURL overrides published mirror (handy for tests and local caches)
type Downloader struct {
	Client  *http.Client
	BaseURL string
}

// Download Fetches all four files of dataset into directory using default HTTP client
func Download(ctx context.Context, kind Kind, dir string) error {
	return (&Downloader{Client: http.DefaultClient}).Download(ctx, kind, dir)
}

// Download Fetches all four files of dataset into directory. Already downloaded files with correct checksum are skipped
func (d *Downloader) Download(ctx context.Context, kind Kind, dir string) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "Can't create directory '%s'", dir)
	}
	base := d.BaseURL
	if base == "" {
		base = mirrors[kind]
	}
	for _, name := range []string{trainImagesFile, trainLabelsFile, testImagesFile, testLabelsFile} {
		fname := filepath.Join(dir, name)
		want := checksums[kind][name]
		if got, err := fileMD5(fname); err == nil && got == want {
			continue
		}
		if err := d.fetch(ctx, base+name, fname); err != nil {
			return errors.Wrapf(err, "Can't download '%s'", name)
		}
		got, err := fileMD5(fname)
		if err != nil {
			return errors.Wrapf(err, "Can't hash '%s'", fname)
		}
		if got != want {
			os.Remove(fname)
			return fmt.Errorf("checksum mismatch for '%s': expected %s, but got %s", name, want, got)
		}
	}
	return nil
}

func (d *Downloader) fetch(ctx context.Context, url, fname string) error {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "Can't prepare request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "Can't do request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status '%s' for '%s'", resp.Status, url)
	}
	tmp := fname + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "Can't create file '%s'", tmp)
	}
	_, err = io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "Can't save response body")
	}
	return os.Rename(tmp, fname)
}

func fileMD5(fname string) (string, error) {
	f, err := os.Open(fname)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
