package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ruteri/fallback-storage/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// proposer is a backend whose only capability is name negotiation.
type proposer struct {
	name    string
	propose func(string) string
}

func (p *proposer) Name() string        { return p.name }
func (p *proposer) LocationURI() string { return "proposer://" + p.name }
func (p *proposer) AvailableName(ctx context.Context, name string) (string, error) {
	return p.propose(name), nil
}

func TestFirstSuccess_Open(t *testing.T) {
	errA := errors.New("A failed")
	errB := errors.New("B failed")

	tests := []struct {
		name        string
		setupMocks  func(a, b *MockStorageBackend)
		expected    string
		expectedErr func(t *testing.T, err error)
	}{
		{
			name: "first backend successful",
			setupMocks: func(a, b *MockStorageBackend) {
				a.On("Open", mock.Anything, "a.txt").Return(io.NopCloser(strings.NewReader("from A")), nil).Once()
			},
			expected: "from A",
		},
		{
			name: "fallback to second backend",
			setupMocks: func(a, b *MockStorageBackend) {
				a.On("Open", mock.Anything, "a.txt").Return(nil, interfaces.ErrContentNotFound).Once()
				b.On("Open", mock.Anything, "a.txt").Return(io.NopCloser(strings.NewReader("from B")), nil).Once()
			},
			expected: "from B",
		},
		{
			name: "all backends fail",
			setupMocks: func(a, b *MockStorageBackend) {
				a.On("Open", mock.Anything, "a.txt").Return(nil, errA).Once()
				b.On("Open", mock.Anything, "a.txt").Return(nil, errB).Once()
			},
			expectedErr: func(t *testing.T, err error) {
				var agg *AggregateBackendError
				require.ErrorAs(t, err, &agg)
				assert.Equal(t, OpOpen, agg.Op)
				assert.Equal(t, backendURI(0)+": A failed\n"+backendURI(1)+": B failed", err.Error())
				assert.ErrorIs(t, err, errA)
				assert.ErrorIs(t, err, errB)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &MockStorageBackend{name: "mock-A"}
			b := &MockStorageBackend{name: "mock-B"}
			tt.setupMocks(a, b)

			fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a, b})
			rc, err := fs.Open(context.Background(), "a.txt")

			if tt.expectedErr != nil {
				require.Error(t, err)
				tt.expectedErr(t, err)
			} else {
				require.NoError(t, err)
				data, err := io.ReadAll(rc)
				require.NoError(t, err)
				assert.Equal(t, tt.expected, string(data))
			}

			a.AssertExpectations(t)
			b.AssertExpectations(t)
		})
	}
}

func TestFirstSuccess_SingleFailureIsReturnedUnchanged(t *testing.T) {
	errA := errors.New("permission denied")

	a := &MockStorageBackend{name: "mock-A"}
	a.On("Size", mock.Anything, "a.txt").Return(int64(0), errA).Once()

	fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a, &bareBackend{name: "bare"}})
	_, err := fs.Size(context.Background(), "a.txt")

	assert.Same(t, errA, err)
	a.AssertExpectations(t)
}

func TestFirstSuccess_StopsAtFirstSuccess(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	a := &MockStorageBackend{name: "mock-A"}
	b := &MockStorageBackend{name: "mock-B"}
	a.On("CreatedTime", mock.Anything, "a.txt").Return(created, nil).Once()

	fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a, b})
	got, err := fs.CreatedTime(context.Background(), "a.txt")

	require.NoError(t, err)
	assert.Equal(t, created, got)
	b.AssertNotCalled(t, "CreatedTime", mock.Anything, mock.Anything)
}

func TestFirstSuccess_SkipsBackendsWithoutCapability(t *testing.T) {
	a := &MockStorageBackend{name: "mock-A"}
	a.On("Path", "a.txt").Return("/srv/media/a.txt", nil).Once()

	fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{&bareBackend{name: "bare"}, a})
	p, err := fs.Path("a.txt")

	require.NoError(t, err)
	assert.Equal(t, "/srv/media/a.txt", p)
}

func TestUnsupportedOperation(t *testing.T) {
	fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{
		&bareBackend{name: "one"},
		&bareBackend{name: "two"},
	})
	ctx := context.Background()

	_, err := fs.Path("a.txt")
	var unsupported *UnsupportedOperationError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, OpPath, unsupported.Op)
	assert.Equal(t, "no backend has the method `path`", err.Error())
	assert.ErrorIs(t, err, interfaces.ErrUnsupported)

	_, err = fs.Exists(ctx, "a.txt")
	assert.ErrorIs(t, err, interfaces.ErrUnsupported)

	// Listing has nothing to fail: an empty result, not an error
	dirs, files, err := fs.ListDir(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{}, dirs)
	assert.Equal(t, []string{}, files)

	_, err = fs.URL(ctx, "a.txt")
	assert.ErrorIs(t, err, interfaces.ErrUnsupported)

	_, err = fs.AvailableName(ctx, "a.txt")
	assert.ErrorIs(t, err, interfaces.ErrUnsupported)

	err = fs.Delete(ctx, "a.txt")
	assert.ErrorIs(t, err, interfaces.ErrUnsupported)
}

func TestAnyTrue_Exists(t *testing.T) {
	errA := errors.New("timeout")

	tests := []struct {
		name       string
		setupMocks func(a, b *MockStorageBackend)
		expected   bool
		expectErr  bool
	}{
		{
			name: "present in second backend",
			setupMocks: func(a, b *MockStorageBackend) {
				a.On("Exists", mock.Anything, "a.txt").Return(false, nil).Once()
				b.On("Exists", mock.Anything, "a.txt").Return(true, nil).Once()
			},
			expected: true,
		},
		{
			name: "present in first backend still asks the rest",
			setupMocks: func(a, b *MockStorageBackend) {
				a.On("Exists", mock.Anything, "a.txt").Return(true, nil).Once()
				b.On("Exists", mock.Anything, "a.txt").Return(false, nil).Once()
			},
			expected: true,
		},
		{
			name: "failure ignored when another backend answers",
			setupMocks: func(a, b *MockStorageBackend) {
				a.On("Exists", mock.Anything, "a.txt").Return(false, errA).Once()
				b.On("Exists", mock.Anything, "a.txt").Return(false, nil).Once()
			},
			expected: false,
		},
		{
			name: "absent from every backend",
			setupMocks: func(a, b *MockStorageBackend) {
				a.On("Exists", mock.Anything, "a.txt").Return(false, nil).Once()
				b.On("Exists", mock.Anything, "a.txt").Return(false, nil).Once()
			},
			expected: false,
		},
		{
			name: "every backend fails",
			setupMocks: func(a, b *MockStorageBackend) {
				a.On("Exists", mock.Anything, "a.txt").Return(false, errA).Once()
				b.On("Exists", mock.Anything, "a.txt").Return(false, errA).Once()
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &MockStorageBackend{name: "mock-A"}
			b := &MockStorageBackend{name: "mock-B"}
			tt.setupMocks(a, b)

			fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a, b})
			exists, err := fs.Exists(context.Background(), "a.txt")

			if tt.expectErr {
				var agg *AggregateBackendError
				assert.ErrorAs(t, err, &agg)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, exists)
			}
			a.AssertExpectations(t)
			b.AssertExpectations(t)
		})
	}
}

func TestConcatLists_ListDir(t *testing.T) {
	a := &MockStorageBackend{name: "mock-A"}
	b := &MockStorageBackend{name: "mock-B"}
	c := &MockStorageBackend{name: "mock-C"}
	a.On("ListDir", mock.Anything, "photos").Return([]string{"2023"}, []string{"a.jpg", "b.jpg"}, nil).Once()
	b.On("ListDir", mock.Anything, "photos").Return(nil, nil, interfaces.ErrContentNotFound).Once()
	c.On("ListDir", mock.Anything, "photos").Return([]string{"2023", "2024"}, []string{"b.jpg"}, nil).Once()

	fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a, b, c})
	dirs, files, err := fs.ListDir(context.Background(), "photos")

	require.NoError(t, err)
	assert.Equal(t, []string{"2023", "2023", "2024"}, dirs)
	assert.Equal(t, []string{"a.jpg", "b.jpg", "b.jpg"}, files)
}

func TestConcatLists_AllFail(t *testing.T) {
	a := &MockStorageBackend{name: "mock-A"}
	a.On("ListDir", mock.Anything, "").Return(nil, nil, interfaces.ErrBackendUnavailable).Once()

	fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a})
	_, _, err := fs.ListDir(context.Background(), "")

	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}

func TestExistenceGated_URL(t *testing.T) {
	t.Run("backend holding the file answers", func(t *testing.T) {
		a := &MockStorageBackend{name: "mock-A"}
		b := &MockStorageBackend{name: "mock-B"}
		a.On("Exists", mock.Anything, "a.txt").Return(false, nil).Once()
		b.On("Exists", mock.Anything, "a.txt").Return(true, nil).Once()
		b.On("URL", mock.Anything, "a.txt").Return("https://b.example.com/a.txt", nil).Once()

		fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a, b})
		u, err := fs.URL(context.Background(), "a.txt")

		require.NoError(t, err)
		assert.Equal(t, "https://b.example.com/a.txt", u)
		a.AssertNotCalled(t, "URL", mock.Anything, mock.Anything)
	})

	t.Run("missing everywhere uses last backend", func(t *testing.T) {
		a := &MockStorageBackend{name: "mock-A"}
		b := &MockStorageBackend{name: "mock-B"}
		a.On("Exists", mock.Anything, "new.txt").Return(false, nil).Once()
		b.On("Exists", mock.Anything, "new.txt").Return(false, nil).Once()
		b.On("URL", mock.Anything, "new.txt").Return("https://b.example.com/new.txt", nil).Once()

		fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a, b})
		u, err := fs.URL(context.Background(), "new.txt")

		require.NoError(t, err)
		assert.Equal(t, "https://b.example.com/new.txt", u)
		a.AssertNotCalled(t, "URL", mock.Anything, mock.Anything)
	})

	t.Run("holder without URL capability is skipped", func(t *testing.T) {
		a := &MockStorageBackend{name: "mock-A"}
		b := &MockStorageBackend{name: "mock-B"}
		b.On("Exists", mock.Anything, "a.txt").Return(false, nil).Once()
		b.On("URL", mock.Anything, "a.txt").Return("https://b.example.com/a.txt", nil).Once()

		fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{existerOnly{m: a}, b})
		u, err := fs.URL(context.Background(), "a.txt")

		require.NoError(t, err)
		assert.Equal(t, "https://b.example.com/a.txt", u)
		a.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
	})

	t.Run("URL without existence check is only used as last backend", func(t *testing.T) {
		a := &MockStorageBackend{name: "mock-A"}
		b := &MockStorageBackend{name: "mock-B"}
		b.On("URL", mock.Anything, "a.txt").Return("https://b.example.com/a.txt", nil).Once()

		fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{urlOnly{m: a}, urlOnly{m: b}})
		u, err := fs.URL(context.Background(), "a.txt")

		require.NoError(t, err)
		assert.Equal(t, "https://b.example.com/a.txt", u)
		a.AssertNotCalled(t, "URL", mock.Anything, mock.Anything)
	})

	t.Run("existence check failure is skipped", func(t *testing.T) {
		a := &MockStorageBackend{name: "mock-A"}
		b := &MockStorageBackend{name: "mock-B"}
		a.On("Exists", mock.Anything, "a.txt").Return(false, errors.New("timeout")).Once()
		b.On("Exists", mock.Anything, "a.txt").Return(true, nil).Once()
		b.On("URL", mock.Anything, "a.txt").Return("https://b.example.com/a.txt", nil).Once()

		fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a, b})
		u, err := fs.URL(context.Background(), "a.txt")

		require.NoError(t, err)
		assert.Equal(t, "https://b.example.com/a.txt", u)
	})

	t.Run("last backend without URL capability", func(t *testing.T) {
		a := &MockStorageBackend{name: "mock-A"}
		a.On("Exists", mock.Anything, "a.txt").Return(false, nil).Once()

		fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a, &bareBackend{name: "bare"}})
		_, err := fs.URL(context.Background(), "a.txt")

		var unsupported *UnsupportedOperationError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, OpURL, unsupported.Op)
	})

	t.Run("URL error is returned", func(t *testing.T) {
		errURL := errors.New("presign failed")
		a := &MockStorageBackend{name: "mock-A"}
		a.On("Exists", mock.Anything, "a.txt").Return(true, nil).Once()
		a.On("URL", mock.Anything, "a.txt").Return("", errURL).Once()

		fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a})
		_, err := fs.URL(context.Background(), "a.txt")

		assert.ErrorIs(t, err, errURL)
	})
}

func TestNegotiate_AvailableName(t *testing.T) {
	free := func(name string) string { return name }

	t.Run("agreement in one round", func(t *testing.T) {
		recorder := &recordingRecorder{}
		fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{
			&proposer{name: "a", propose: free},
			&proposer{name: "b", propose: free},
		}, WithRecorder(recorder))

		name, err := fs.AvailableName(context.Background(), "x.txt")

		require.NoError(t, err)
		assert.Equal(t, "x.txt", name)
		assert.Equal(t, []int{1}, recorder.negotiations)
	})

	t.Run("collision in one backend renames", func(t *testing.T) {
		taken := func(name string) string {
			if name == "x" {
				return "x_1"
			}
			return name
		}
		recorder := &recordingRecorder{}
		fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{
			&proposer{name: "a", propose: free},
			&proposer{name: "b", propose: taken},
		}, WithRecorder(recorder))

		name, err := fs.AvailableName(context.Background(), "x")

		require.NoError(t, err)
		assert.Equal(t, "x_1", name)
		assert.Equal(t, []int{2}, recorder.negotiations)
	})

	t.Run("ties resolve to the smallest candidate", func(t *testing.T) {
		fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{
			&proposer{name: "a", propose: func(n string) string {
				if n == "x" {
					return "x_b"
				}
				return n
			}},
			&proposer{name: "b", propose: func(n string) string {
				if n == "x" {
					return "x_a"
				}
				return n
			}},
		})

		name, err := fs.AvailableName(context.Background(), "x")

		require.NoError(t, err)
		assert.Equal(t, "x_a", name)
	})

	t.Run("negotiation gives up after the round limit", func(t *testing.T) {
		recorder := &recordingRecorder{}
		fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{
			&proposer{name: "a", propose: func(n string) string { return n + "a" }},
			&proposer{name: "b", propose: func(n string) string { return n + "b" }},
		}, WithMaxNegotiationRounds(5), WithRecorder(recorder))

		_, err := fs.AvailableName(context.Background(), "x")

		var failed *NegotiationFailedError
		require.ErrorAs(t, err, &failed)
		assert.Equal(t, "x", failed.Name)
		assert.Equal(t, 5, failed.Rounds)
		assert.Equal(t, []int{5}, recorder.negotiations)
	})

	t.Run("failing backend does not block agreement", func(t *testing.T) {
		broken := &MockStorageBackend{name: "broken"}
		broken.On("AvailableName", mock.Anything, mock.Anything).Return("", errors.New("offline"))

		fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{
			broken,
			&proposer{name: "b", propose: free},
		})

		name, err := fs.AvailableName(context.Background(), "x")

		require.NoError(t, err)
		assert.Equal(t, "x", name)
	})
}

func TestSave_NegotiatesAndRewinds(t *testing.T) {
	a := &MockStorageBackend{name: "mock-A"}
	b := &MockStorageBackend{name: "mock-B"}
	var received []byte

	a.On("AvailableName", mock.Anything, "a.txt").Return("a_1.txt", nil)
	b.On("AvailableName", mock.Anything, "a.txt").Return("a_1.txt", nil)
	a.On("Save", mock.Anything, "a_1.txt", mock.Anything).Run(func(args mock.Arguments) {
		// Consume part of the content before failing
		buf := make([]byte, 3)
		_, _ = args.Get(2).(io.Reader).Read(buf)
	}).Return("", errors.New("disk full")).Once()
	b.On("Save", mock.Anything, "a_1.txt", mock.Anything).Run(func(args mock.Arguments) {
		received, _ = io.ReadAll(args.Get(2).(io.Reader))
	}).Return("a_1.txt", nil).Once()

	fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a, b})
	content := io.MultiReader(strings.NewReader("hello "), strings.NewReader("world"))
	name, err := fs.Save(context.Background(), "a.txt", content)

	require.NoError(t, err)
	assert.Equal(t, "a_1.txt", name)
	assert.Equal(t, "hello world", string(received))
	a.AssertExpectations(t)
	b.AssertExpectations(t)
}

func TestSave_WithoutNamers(t *testing.T) {
	var received bytes.Buffer
	a := &MockStorageBackend{name: "mock-A"}
	a.On("AvailableName", mock.Anything, "a.txt").Return("", &UnsupportedOperationError{Op: OpAvailableName}).Once()
	a.On("Save", mock.Anything, "a.txt", mock.Anything).Run(func(args mock.Arguments) {
		_, _ = received.ReadFrom(args.Get(2).(io.Reader))
	}).Return("a.txt", nil).Once()

	fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a})
	name, err := fs.Save(context.Background(), "a.txt", strings.NewReader("data"))

	require.NoError(t, err)
	assert.Equal(t, "a.txt", name)
	assert.Equal(t, "data", received.String())
}

func TestSave_RejectsEmptyName(t *testing.T) {
	a := &MockStorageBackend{name: "mock-A"}
	fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a})

	_, err := fs.Save(context.Background(), "  ", strings.NewReader("data"))

	assert.ErrorIs(t, err, interfaces.ErrInvalidName)
	a.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestDelete_OnlyFirstBackend(t *testing.T) {
	a := &MockStorageBackend{name: "mock-A"}
	b := &MockStorageBackend{name: "mock-B"}
	a.On("Delete", mock.Anything, "a.txt").Return(nil).Once()

	fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a, b})
	require.NoError(t, fs.Delete(context.Background(), "a.txt"))

	a.AssertExpectations(t)
	b.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDispatch_UnavailableBackend(t *testing.T) {
	down := &switchableBackend{MockStorageBackend: &MockStorageBackend{name: "down"}, up: false}
	up := &MockStorageBackend{name: "up"}
	up.On("Size", mock.Anything, "a.txt").Return(int64(0), interfaces.ErrContentNotFound).Once()

	fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{down, up})
	_, err := fs.Size(context.Background(), "a.txt")

	var agg *AggregateBackendError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Errors, 2)
	assert.ErrorIs(t, agg.Errors[0].Err, interfaces.ErrBackendUnavailable)
	assert.ErrorIs(t, agg.Errors[1].Err, interfaces.ErrContentNotFound)
	down.AssertNotCalled(t, "Size", mock.Anything, mock.Anything)
}

func TestDispatch_ConstructionErrorIsNotFallenPast(t *testing.T) {
	factory := newStaticFactory()
	a := &MockStorageBackend{name: "mock-A"}
	c := &MockStorageBackend{name: "mock-C"}
	a.On("Open", mock.Anything, "a.txt").Return(nil, interfaces.ErrContentNotFound).Once()

	fs := newTestStorage(t, factory, []interfaces.StorageBackend{a, nil, c})
	_, err := fs.Open(context.Background(), "a.txt")

	var construction *BackendConstructionError
	require.ErrorAs(t, err, &construction)
	assert.Equal(t, backendURI(1), construction.Location)
	c.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
	assert.Equal(t, 0, factory.constructions(backendURI(2)))
}

func TestDispatch_BackendsConstructedLazilyOnce(t *testing.T) {
	factory := newStaticFactory()
	a := &MockStorageBackend{name: "mock-A"}
	b := &MockStorageBackend{name: "mock-B"}
	a.On("Exists", mock.Anything, "a.txt").Return(true, nil)
	b.On("Exists", mock.Anything, "a.txt").Return(false, nil)

	fs := newTestStorage(t, factory, []interfaces.StorageBackend{a, b})
	assert.Equal(t, 0, factory.constructions(backendURI(0)))

	for range 3 {
		exists, err := fs.Exists(context.Background(), "a.txt")
		require.NoError(t, err)
		assert.True(t, exists)
	}

	assert.Equal(t, 1, factory.constructions(backendURI(0)))
	assert.Equal(t, 1, factory.constructions(backendURI(1)))
}

func TestDispatch_CancelledContext(t *testing.T) {
	a := &MockStorageBackend{name: "mock-A"}
	fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fs.Open(ctx, "a.txt")
	assert.ErrorIs(t, err, context.Canceled)
	a.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
}

func TestDispatch_RecordsOutcomes(t *testing.T) {
	recorder := &recordingRecorder{}
	a := &MockStorageBackend{name: "mock-A"}
	b := &MockStorageBackend{name: "mock-B"}
	a.On("ValidName", "my file.txt").Return("", errors.New("nope")).Once()
	b.On("ValidName", "my file.txt").Return("my_file.txt", nil).Once()

	fs := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{a, b}, WithRecorder(recorder))

	name, err := fs.ValidName("my file.txt")
	require.NoError(t, err)
	assert.Equal(t, "my_file.txt", name)

	bare := newTestStorage(t, newStaticFactory(), []interfaces.StorageBackend{&bareBackend{name: "bare"}}, WithRecorder(recorder))
	_, err = bare.Path("x")
	require.Error(t, err)

	assert.Equal(t, []dispatchRecord{
		{op: OpValidName, outcome: OutcomeSuccess},
		{op: OpPath, outcome: OutcomeUnsupported},
	}, recorder.dispatches)
	assert.Equal(t, []string{"mock-A"}, recorder.failures)
}
