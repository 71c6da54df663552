package detection

import "container-tracker/workers/detection/uploader"

// Pair builds one submission per container number. The i-th number takes the
// i-th ISO code when there is one, otherwise the first ISO code, otherwise none.
func Pair(containers, isoCodes []string) []uploader.Submission {
	submissions := make([]uploader.Submission, 0, len(containers))
	for i, number := range containers {
		iso := ""
		switch {
		case i < len(isoCodes):
			iso = isoCodes[i]
		case len(isoCodes) > 0:
			iso = isoCodes[0]
		}
		submissions = append(submissions, uploader.Submission{ContainerNumber: number, ISOCode: iso})
	}
	return submissions
}
