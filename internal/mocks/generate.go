package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Notifier --dir ../domain/event --output domain/event --outpkg eventmock --filename notifier_mock.go
